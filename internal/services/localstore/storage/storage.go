// Package storage defines persistence contracts for the local marketplace
// store.
//
// Implementations are only reachable through a handle whose schema migrations
// have completed, so every method may assume the full schema exists.
package storage

import (
	"context"
	"time"

	apperrors "github.com/ecomarket/localstore/internal/platform/errors"
)

// Sentinels carry a domain code so callers can use errors.Is or
// apperrors.CodeOf interchangeably.
var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrAlreadyExists indicates a primary-key or uniqueness conflict.
	ErrAlreadyExists = apperrors.New(apperrors.CodeAlreadyExists, "record already exists")
	// ErrForeignKey indicates a reference to a missing parent row.
	ErrForeignKey = apperrors.New(apperrors.CodeForeignKeyViolated, "referenced record does not exist")
	// ErrConstraint indicates any other schema constraint violation.
	ErrConstraint = apperrors.New(apperrors.CodeConstraintViolated, "constraint violation")
	// ErrLevelOverlap indicates a level whose point range intersects another.
	ErrLevelOverlap = apperrors.New(apperrors.CodeLevelOverlap, "level point range overlaps an existing level")
	// ErrInvalidLanguage indicates a translation language that is not a BCP 47 tag.
	ErrInvalidLanguage = apperrors.New(apperrors.CodeInvalidLanguage, "invalid language tag")
)

// Country is the root of the geography hierarchy.
type Country struct {
	ID       int64
	Name     string
	SyncedAt time.Time
}

// Region belongs to one country.
type Region struct {
	ID        int64
	Name      string
	CountryID int64
	SyncedAt  time.Time
}

// City belongs to one region.
type City struct {
	ID       int64
	Name     string
	RegionID int64
	SyncedAt time.Time
}

// County belongs to one city.
type County struct {
	ID       int64
	Name     string
	CityID   int64
	SyncedAt time.Time
}

// SellerType distinguishes individual from business sellers.
type SellerType string

const (
	SellerPerson   SellerType = "person"
	SellerBusiness SellerType = "business"
)

// Seller is a marketplace participant. LevelID and CountyID are zero when unset.
type Seller struct {
	ID          int64
	Type        SellerType
	Email       string
	DisplayName string
	Phone       string
	AvatarURL   string
	Points      int64
	LevelID     int64
	CountyID    int64
	Active      bool
	CreatedAt   time.Time
	SyncedAt    time.Time
}

// PersonProfile specializes a person seller.
type PersonProfile struct {
	SellerID  int64
	FirstName string
	LastName  string
	BirthDate string
}

// BusinessProfile specializes a business seller.
type BusinessProfile struct {
	SellerID     int64
	BusinessName string
	TaxID        string
	Description  string
}

// SellerPreferences holds per-seller app settings.
type SellerPreferences struct {
	SellerID             int64
	Language             string
	Currency             string
	NotificationsEnabled bool
	DarkMode             bool
}

// Level is a gamification tier covering the closed range [MinPoints, MaxPoints].
type Level struct {
	ID        int64
	Name      string
	MinPoints int64
	MaxPoints int64
}

// Label is an achievement a seller can earn once.
type Label struct {
	ID          int64
	Name        string
	Description string
	IconURL     string
}

// CategoryKind selects one level of the catalog hierarchies.
type CategoryKind int

const (
	CategoryDepartment CategoryKind = iota + 1
	CategoryDepartmentCategory
	CategoryProductCategory
	CategoryStoreCategory
	CategoryStoreSubCategory
	CategoryServiceCategory
	CategoryBlogCategory
)

// CategoryKinds lists every catalog level.
var CategoryKinds = []CategoryKind{
	CategoryDepartment,
	CategoryDepartmentCategory,
	CategoryProductCategory,
	CategoryStoreCategory,
	CategoryStoreSubCategory,
	CategoryServiceCategory,
	CategoryBlogCategory,
}

func (k CategoryKind) String() string {
	switch k {
	case CategoryDepartment:
		return "department"
	case CategoryDepartmentCategory:
		return "department_category"
	case CategoryProductCategory:
		return "product_category"
	case CategoryStoreCategory:
		return "store_category"
	case CategoryStoreSubCategory:
		return "store_sub_category"
	case CategoryServiceCategory:
		return "service_category"
	case CategoryBlogCategory:
		return "blog_category"
	default:
		return "unknown"
	}
}

// Category is one node of a catalog hierarchy. ParentID is zero for roots.
type Category struct {
	ID       int64
	ParentID int64
	Name     string
	Active   bool
}

// Translation is the localized name of a category in one language.
type Translation struct {
	ParentID    int64
	Language    string
	Name        string
	Description string
}

// ProductCondition describes the wear of a listed product.
type ProductCondition string

const (
	ConditionNew      ProductCondition = "new"
	ConditionLikeNew  ProductCondition = "like_new"
	ConditionUsed     ProductCondition = "used"
	ConditionForParts ProductCondition = "for_parts"
)

// InteractionType is how a product changes hands.
type InteractionType string

const (
	InteractionSale     InteractionType = "sale"
	InteractionExchange InteractionType = "exchange"
	InteractionDonation InteractionType = "donation"
)

// Product is a marketplace listing. Deleted products keep their row with a
// non-zero DeletedAt.
type Product struct {
	ID              int64
	SellerID        int64
	CategoryID      int64
	Title           string
	Description     string
	Price           int64
	Condition       ProductCondition
	InteractionType InteractionType
	WeightKg        float64
	ImageURL        string
	Active          bool
	DeletedAt       time.Time
	CreatedAt       time.Time
	SyncedAt        time.Time
}

// StoreProduct is a catalog item sold by a store seller.
type StoreProduct struct {
	ID            int64
	SubCategoryID int64
	SellerID      int64
	Name          string
	Description   string
	Price         int64
	Stock         int64
	ImageURL      string
	Active        bool
	DeletedAt     time.Time
}

// OrderStatus is the lifecycle position of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Order belongs to its buying seller and owns its items in position order.
type Order struct {
	ID              int64
	SellerID        int64
	Status          OrderStatus
	Total           int64
	ShippingAddress string
	CreatedAt       time.Time
	Items           []OrderItem
}

// OrderItem references exactly one of ProductID or StoreProductID. Position
// is the item's index in Order.Items and is filled in by reads.
type OrderItem struct {
	Position       int
	ProductID      int64
	StoreProductID int64
	Quantity       int64
	UnitPrice      int64
}

// MaterialEstimate is reference data for the savings of reusing one kilogram
// of a material.
type MaterialEstimate struct {
	ID                int64
	MaterialType      string
	CO2SavingsPerKg   float64
	WaterSavingsPerKg float64
	Source            string
}

// CategoryMaterial links a product category to one of its materials.
type CategoryMaterial struct {
	CategoryID int64
	MaterialID int64
	Quantity   float64
	Percentage float64
	Primary    bool
}

// CategoryImpact is one material of a category joined with its estimate.
type CategoryImpact struct {
	Material   MaterialEstimate
	Quantity   float64
	Percentage float64
	Primary    bool
}

// SyncCheckpoint records the last pull of one entity kind from the remote API.
type SyncCheckpoint struct {
	Entity   string
	Cursor   string
	SyncedAt time.Time
}

// GeographyStore persists the country/region/city/county hierarchy.
type GeographyStore interface {
	PutCountry(ctx context.Context, country Country) error
	PutRegion(ctx context.Context, region Region) error
	PutCity(ctx context.Context, city City) error
	PutCounty(ctx context.Context, county County) error
	ListRegions(ctx context.Context, countryID int64) ([]Region, error)
}

// SellerStore persists sellers and their owned profile rows.
type SellerStore interface {
	PutSeller(ctx context.Context, seller Seller) error
	GetSeller(ctx context.Context, id int64) (Seller, error)
	DeleteSeller(ctx context.Context, id int64) error
	PutPersonProfile(ctx context.Context, profile PersonProfile) error
	PutBusinessProfile(ctx context.Context, profile BusinessProfile) error
	PutSellerPreferences(ctx context.Context, prefs SellerPreferences) error
	GetSellerPreferences(ctx context.Context, sellerID int64) (SellerPreferences, error)
}

// GamificationStore persists levels and achieved labels.
type GamificationStore interface {
	PutLevel(ctx context.Context, level Level) error
	LevelForPoints(ctx context.Context, points int64) (Level, error)
	PutLabel(ctx context.Context, label Label) error
	AwardLabel(ctx context.Context, sellerID, labelID int64) error
}

// CatalogStore persists category hierarchies and their translations.
type CatalogStore interface {
	PutCategory(ctx context.Context, kind CategoryKind, category Category) error
	ListCategories(ctx context.Context, kind CategoryKind, parentID int64) ([]Category, error)
	CreateTranslation(ctx context.Context, kind CategoryKind, translation Translation) error
	GetTranslation(ctx context.Context, kind CategoryKind, parentID int64, preferred ...string) (Translation, error)
}

// ListingStore persists products and store products.
type ListingStore interface {
	PutProduct(ctx context.Context, product Product) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListActiveProducts(ctx context.Context, sellerID int64) ([]Product, error)
	SoftDeleteProduct(ctx context.Context, id int64, at time.Time) error
	PutStoreProduct(ctx context.Context, product StoreProduct) error
}

// OrderStore persists orders with their items.
type OrderStore interface {
	CreateOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, id int64) (Order, error)
}

// ImpactStore persists environmental-impact reference data.
type ImpactStore interface {
	PutMaterialEstimate(ctx context.Context, estimate MaterialEstimate) error
	LinkCategoryMaterial(ctx context.Context, link CategoryMaterial) error
	CategoryImpact(ctx context.Context, categoryID int64) ([]CategoryImpact, error)
}

// KeyValueStore persists local settings.
type KeyValueStore interface {
	PutValue(ctx context.Context, key, value string) error
	GetValue(ctx context.Context, key string) (string, error)
	DeleteValue(ctx context.Context, key string) error
}

// SyncCheckpointStore records pulls from the remote API. It does not decide
// when data is stale.
type SyncCheckpointStore interface {
	MarkSynced(ctx context.Context, entity, cursor string, at time.Time) error
	GetSyncCheckpoint(ctx context.Context, entity string) (SyncCheckpoint, error)
}
