package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ecomarket/localstore/internal/services/localstore/storage"
	"golang.org/x/text/language"
)

// defaultLanguage is the catalog's source language and the last fallback when
// matching translations.
var defaultLanguage = language.Spanish

type categoryTable struct {
	table             string
	parentColumn      string
	translationTable  string
	translationColumn string
}

var categoryTables = map[storage.CategoryKind]categoryTable{
	storage.CategoryDepartment: {
		table:             "departments",
		translationTable:  "department_translations",
		translationColumn: "department_id",
	},
	storage.CategoryDepartmentCategory: {
		table:             "department_categories",
		parentColumn:      "department_id",
		translationTable:  "department_category_translations",
		translationColumn: "department_category_id",
	},
	storage.CategoryProductCategory: {
		table:             "product_categories",
		parentColumn:      "department_category_id",
		translationTable:  "product_category_translations",
		translationColumn: "product_category_id",
	},
	storage.CategoryStoreCategory: {
		table:             "store_categories",
		translationTable:  "store_category_translations",
		translationColumn: "store_category_id",
	},
	storage.CategoryStoreSubCategory: {
		table:        "store_sub_categories",
		parentColumn: "store_category_id",
	},
	storage.CategoryServiceCategory: {
		table:             "service_categories",
		translationTable:  "service_category_translations",
		translationColumn: "service_category_id",
	},
	storage.CategoryBlogCategory: {
		table:             "blog_categories",
		translationTable:  "blog_category_translations",
		translationColumn: "blog_category_id",
	},
}

func lookupCategoryTable(kind storage.CategoryKind) (categoryTable, error) {
	table, ok := categoryTables[kind]
	if !ok {
		return categoryTable{}, fmt.Errorf("unknown category kind %d", int(kind))
	}
	return table, nil
}

func lookupTranslationTable(kind storage.CategoryKind) (categoryTable, error) {
	table, err := lookupCategoryTable(kind)
	if err != nil {
		return categoryTable{}, err
	}
	if table.translationTable == "" {
		return categoryTable{}, fmt.Errorf("%s has no translations", kind)
	}
	return table, nil
}

// PutCategory inserts or refreshes one node of the catalog hierarchy selected
// by kind. Non-root kinds require ParentID.
func (s *Store) PutCategory(ctx context.Context, kind storage.CategoryKind, category storage.Category) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	table, err := lookupCategoryTable(kind)
	if err != nil {
		return err
	}
	if category.ID <= 0 {
		return fmt.Errorf("%s id is required", kind)
	}
	name := strings.TrimSpace(category.Name)
	if name == "" {
		return fmt.Errorf("%s name is required", kind)
	}

	if table.parentColumn == "" {
		if category.ParentID != 0 {
			return fmt.Errorf("%s is a root category", kind)
		}
		_, err = s.sqlDB.ExecContext(ctx,
			`INSERT INTO `+table.table+` (id, name, is_active, synced_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name,
			   is_active = excluded.is_active,
			   synced_at = excluded.synced_at`,
			category.ID, name, boolInt(category.Active), s.syncedAt(),
		)
		return classifyError("put "+kind.String(), err)
	}

	if category.ParentID <= 0 {
		return fmt.Errorf("%s parent id is required", kind)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO `+table.table+` (id, `+table.parentColumn+`, name, is_active, synced_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   `+table.parentColumn+` = excluded.`+table.parentColumn+`,
		   name = excluded.name,
		   is_active = excluded.is_active,
		   synced_at = excluded.synced_at`,
		category.ID, category.ParentID, name, boolInt(category.Active), s.syncedAt(),
	)
	return classifyError("put "+kind.String(), err)
}

// ListCategories returns active categories of kind ordered by name. parentID
// filters children of one parent; zero lists every active node of the kind.
func (s *Store) ListCategories(ctx context.Context, kind storage.CategoryKind, parentID int64) ([]storage.Category, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	table, err := lookupCategoryTable(kind)
	if err != nil {
		return nil, err
	}

	parentExpr := "0"
	if table.parentColumn != "" {
		parentExpr = table.parentColumn
	}
	query := `SELECT id, ` + parentExpr + `, name, is_active FROM ` + table.table + ` WHERE is_active = 1`
	args := []any{}
	if parentID != 0 {
		if table.parentColumn == "" {
			return nil, fmt.Errorf("%s is a root category", kind)
		}
		query += ` AND ` + table.parentColumn + ` = ?`
		args = append(args, parentID)
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var categories []storage.Category
	for rows.Next() {
		var (
			category storage.Category
			active   int
		)
		if err := rows.Scan(&category.ID, &category.ParentID, &category.Name, &active); err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		category.Active = active == 1
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return categories, nil
}

// CreateTranslation stores the translation of one category. The language is
// stored as its canonical BCP 47 tag; a second translation for the same
// category and language fails with storage.ErrAlreadyExists.
func (s *Store) CreateTranslation(ctx context.Context, kind storage.CategoryKind, translation storage.Translation) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	table, err := lookupTranslationTable(kind)
	if err != nil {
		return err
	}
	tag, err := parseLanguage(translation.Language)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(translation.Name)
	if name == "" {
		return fmt.Errorf("translation name is required")
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO `+table.translationTable+` (`+table.translationColumn+`, language, name, description, synced_at)
		 VALUES (?, ?, ?, ?, ?)`,
		translation.ParentID, tag.String(), name, strings.TrimSpace(translation.Description), s.syncedAt(),
	)
	return classifyError("create "+kind.String()+" translation", err)
}

// GetTranslation returns the translation of a category that best matches the
// preferred languages, falling back to Spanish and then to any stored
// translation. Unparseable preferences are skipped.
func (s *Store) GetTranslation(ctx context.Context, kind storage.CategoryKind, parentID int64, preferred ...string) (storage.Translation, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Translation{}, err
	}
	table, err := lookupTranslationTable(kind)
	if err != nil {
		return storage.Translation{}, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+table.translationColumn+`, language, name, description
		   FROM `+table.translationTable+`
		  WHERE `+table.translationColumn+` = ?
		  ORDER BY id ASC`,
		parentID,
	)
	if err != nil {
		return storage.Translation{}, fmt.Errorf("get %s translation: %w", kind, err)
	}
	defer rows.Close()

	var (
		translations []storage.Translation
		supported    []language.Tag
	)
	for rows.Next() {
		var translation storage.Translation
		if err := rows.Scan(&translation.ParentID, &translation.Language, &translation.Name, &translation.Description); err != nil {
			return storage.Translation{}, fmt.Errorf("get %s translation: %w", kind, err)
		}
		tag, err := language.Parse(translation.Language)
		if err != nil {
			continue
		}
		translations = append(translations, translation)
		supported = append(supported, tag)
	}
	if err := rows.Err(); err != nil {
		return storage.Translation{}, fmt.Errorf("get %s translation: %w", kind, err)
	}
	if len(translations) == 0 {
		return storage.Translation{}, storage.ErrNotFound
	}

	desired := make([]language.Tag, 0, len(preferred)+1)
	for _, value := range preferred {
		tag, err := language.Parse(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		desired = append(desired, tag)
	}
	desired = append(desired, defaultLanguage)

	_, index, _ := language.NewMatcher(supported).Match(desired...)
	return translations[index], nil
}

func parseLanguage(value string) (language.Tag, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.Und, fmt.Errorf("%w: language is required", storage.ErrInvalidLanguage)
	}
	tag, err := language.Parse(value)
	if err != nil {
		var valueErr interface{ Subtag() string }
		if errors.As(err, &valueErr) {
			return language.Und, fmt.Errorf("%w: %q has unknown subtag %q", storage.ErrInvalidLanguage, value, valueErr.Subtag())
		}
		return language.Und, fmt.Errorf("%w: %q: %w", storage.ErrInvalidLanguage, value, err)
	}
	return tag, nil
}
