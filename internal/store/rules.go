package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/gbolabs/photoindex/internal/cmn"
)

// SelectionPreferences loads every preference row, sorted so the scoring
// engine (internal/duplicate) can find the longest-matching prefix
// deterministically: longest prefix first, then by sort_order.
func SelectionPreferences(ctx context.Context, q queryRower) ([]SelectionPreference, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, path_prefix, priority, sort_order FROM selection_preferences
		ORDER BY length(path_prefix) DESC, sort_order ASC
	`)
	if err != nil {
		return nil, cmn.NewIO("list_preferences_failed", "failed to list selection preferences", err)
	}
	defer rows.Close()
	var out []SelectionPreference
	for rows.Next() {
		var p SelectionPreference
		if err := rows.Scan(&p.ID, &p.PathPrefix, &p.Priority, &p.SortOrder); err != nil {
			return nil, cmn.NewIO("scan_preference_failed", "failed to scan selection preference", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// HiddenFolders/HiddenSizeRules back the hide/unhide rules from spec.md §3.
// Removing a rule unhides every file that references it; callers do that
// in a transaction alongside the DELETE.

func ListHiddenFolders(ctx context.Context, q queryRower) ([]HiddenFolder, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, prefix FROM hidden_folders`)
	if err != nil {
		return nil, cmn.NewIO("list_hidden_folders_failed", "failed to list hidden folders", err)
	}
	defer rows.Close()
	var out []HiddenFolder
	for rows.Next() {
		var h HiddenFolder
		if err := rows.Scan(&h.ID, &h.Prefix); err != nil {
			return nil, cmn.NewIO("scan_hidden_folder_failed", "failed to scan hidden folder", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func CreateHiddenFolder(ctx context.Context, tx *sql.Tx, prefix string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := tx.ExecContext(ctx, `INSERT INTO hidden_folders (id, prefix) VALUES ($1, $2)`, id, prefix)
	if err != nil {
		return uuid.Nil, cmn.NewIO("create_hidden_folder_failed", "failed to create hidden folder rule", err)
	}
	return id, nil
}

// ApplyHideRule hides every live file whose path starts with prefix and is
// not already hidden, tagging each with the rule's id/category, then
// recomputes any group whose live-member count may have dropped below 2
// (spec.md §8: "hiding all but one member must dissolve the group").
func ApplyHideRule(ctx context.Context, tx *sql.Tx, ruleID uuid.UUID, category HiddenCategory, pathPrefix string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, duplicate_group_id FROM indexed_files
		WHERE path LIKE $1 AND deletion_state = 'live' AND hidden = false
	`, pathPrefix+"%")
	if err != nil {
		return cmn.NewIO("hide_rule_select_failed", "failed to select files for hide rule", err)
	}
	type row struct {
		id      uuid.UUID
		groupID *uuid.UUID
	}
	var affected []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.groupID); err != nil {
			rows.Close()
			return cmn.NewIO("hide_rule_scan_failed", "failed to scan file for hide rule", err)
		}
		affected = append(affected, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return cmn.NewIO("hide_rule_rows_failed", "failed to iterate files for hide rule", err)
	}

	for _, r := range affected {
		_, err := tx.ExecContext(ctx, `
			UPDATE indexed_files SET hidden = true, hidden_category = $1, hidden_rule_id = $2
			WHERE id = $3
		`, category, ruleID, r.id)
		if err != nil {
			return cmn.NewIO("hide_file_failed", "failed to hide file", err)
		}
		if r.groupID != nil {
			if err := RecomputeGroupCounts(ctx, tx, *r.groupID); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveHideRule unhides every file the rule currently hides, per spec.md
// §3: "removing the rule unhides them".
func RemoveHideRule(ctx context.Context, tx *sql.Tx, ruleID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE indexed_files SET hidden = false, hidden_category = NULL, hidden_rule_id = NULL
		WHERE hidden_rule_id = $1
	`, ruleID)
	if err != nil {
		return cmn.NewIO("unhide_failed", "failed to unhide files for removed rule", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM hidden_folders WHERE id = $1`, ruleID); err != nil {
		return cmn.NewIO("delete_hidden_folder_failed", "failed to delete hidden folder rule", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM hidden_size_rules WHERE id = $1`, ruleID); err != nil {
		return cmn.NewIO("delete_hidden_size_rule_failed", "failed to delete hidden size rule", err)
	}
	return nil
}
