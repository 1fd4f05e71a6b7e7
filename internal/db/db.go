package db

import (
	"fmt"

	"inkwell/internal/auth"
	"inkwell/internal/block"
	"inkwell/internal/note"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&note.Note{},
		&note.Collaborator{},
		&block.Block{},
	); err != nil {
		return err
	}

	// Tree reads list all live blocks of a note; sibling ordering and
	// position auto-assignment group by (note_id, parent_id).
	stmts := []string{
		`create index if not exists idx_blocks_note_live on blocks(note_id) where deleted = false;`,
		`create index if not exists idx_blocks_siblings on blocks(note_id, parent_id, position);`,
		`create index if not exists idx_blocks_user_live on blocks(user_id) where deleted = false;`,
		`create index if not exists idx_notes_user_updated on notes(user_id, updated_at desc);`,
		`create index if not exists idx_notes_tags on notes using gin (tags);`,
		`create index if not exists idx_collaborators_user on collaborators(user_id);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
