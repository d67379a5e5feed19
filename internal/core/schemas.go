package core

import "strings"

func init() {
	registerDefaultSchemas()
}

func registerDefaultSchemas() {
	Register(EntitySchema{
		Kind:  KindUser,
		Title: "Users",
		Columns: []string{
			ColNameOrTitle, ColOSFLink, "department", "orcid_id",
			"public_projects", "private_projects",
			"public_registration_count", "embargoed_registration_count",
			"published_preprint_count", ColPublicFileCount, ColStorageBytes,
			"account_created_date", "month_last_login", "month_last_active",
		},
		Defaults: []string{
			ColNameOrTitle, ColOSFLink, "department",
			"public_projects", "private_projects", "month_last_login",
		},
		Filters: []string{"department"},
	})

	Register(EntitySchema{
		Kind:  KindProject,
		Title: "Projects",
		Columns: []string{
			ColNameOrTitle, ColOSFLink, "created_date", "modified_date",
			"storage_region", ColStorageGB, "views_last_30_days", "downloads_last_30_days",
			"license", "resource_type", "add_ons", "funder_name",
		},
		Defaults: []string{
			ColNameOrTitle, ColOSFLink, "created_date", "modified_date",
			"storage_region", ColStorageGB, "license", "resource_type", "add_ons",
		},
		Filters:    []string{"resource_type", "license", "storage_region"},
		MultiValue: []string{"add_ons", "funder_name", "creators"},
	})

	Register(EntitySchema{
		Kind:  KindRegistration,
		Title: "Registrations",
		Columns: []string{
			ColNameOrTitle, ColOSFLink, "created_date", "modified_date", ColDOI,
			"storage_region", ColStorageGB, "views_last_30_days", "downloads_last_30_days",
			"license", "resource_type", "add_ons", "funder_name",
		},
		Defaults: []string{
			ColNameOrTitle, ColOSFLink, "created_date", "modified_date", ColDOI,
			"storage_region", ColStorageGB, "license", "resource_type",
		},
		Filters:    []string{"resource_type", "license", "storage_region"},
		MultiValue: []string{"add_ons", "funder_name", "creators"},
	})

	Register(EntitySchema{
		Kind:  KindPreprint,
		Title: "Preprints",
		Columns: []string{
			ColNameOrTitle, ColOSFLink, "created_date", "modified_date", ColDOI,
			"license", "resource_type", "views_last_30_days", "downloads_last_30_days",
		},
		Defaults: []string{
			ColNameOrTitle, ColOSFLink, "created_date", "modified_date", ColDOI,
			"license", "resource_type",
		},
		Filters:    []string{"resource_type", "license"},
		MultiValue: []string{"creators"},
	})
}

// ResetSchemas restores the built-in schemas.
// Primarily useful for testing.
func ResetSchemas() {
	Clear()
	registerDefaultSchemas()
}

var columnLabels = map[string]string{
	ColNameOrTitle:           "Name / Title",
	ColOSFLink:               "OSF Link",
	ColDOI:                   "DOI",
	"created_date":           "Created",
	"modified_date":          "Modified",
	"storage_region":         "Storage region",
	ColStorageBytes:          "Storage (bytes)",
	ColStorageGB:             "Storage (GB)",
	"views_last_30_days":     "Views (30d)",
	"downloads_last_30_days": "Downloads (30d)",
	"resource_type":          "Resource type",
	"add_ons":                "Add-ons",
	"funder_name":            "Funder",
	"orcid_id":               "ORCID",
	ColPublicFileCount:       "Public files",
}

// ColumnLabel returns the display label for a raw column name.
// Unknown columns are title-cased from their snake_case name.
func ColumnLabel(col string) string {
	if label, ok := columnLabels[col]; ok {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(col, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
