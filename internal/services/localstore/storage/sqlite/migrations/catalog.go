package migrations

// CatalogTables lists every domain table created by version 1.
var CatalogTables = []string{
	"countries",
	"regions",
	"cities",
	"counties",
	"levels",
	"labels",
	"sellers",
	"person_profiles",
	"business_profiles",
	"seller_preferences",
	"achieved_labels",
	"departments",
	"department_translations",
	"department_categories",
	"department_category_translations",
	"product_categories",
	"product_category_translations",
	"store_categories",
	"store_category_translations",
	"store_sub_categories",
	"store_products",
	"products",
	"service_categories",
	"service_category_translations",
	"services",
	"orders",
	"order_items",
	"notifications",
	"chat_rooms",
	"chat_participants",
	"chat_messages",
	"material_impact_estimates",
	"product_category_materials",
	"blog_categories",
	"blog_category_translations",
	"blog_posts",
	"blog_comments",
	"key_values",
}

// UnsyncedTables are catalog tables owned locally; every other catalog table
// mirrors remote data and carries synced_at.
var UnsyncedTables = []string{"key_values"}
