package model

import "time"

// Item lifecycle states stored in items.status.  PENDING is the initial
// state of a freshly listed item.  There is no moderation workflow, so
// PENDING items are listable and tradeable exactly like AVAILABLE ones;
// the transition exists so a future review step has somewhere to land.
// SWAPPED and REDEEMED are terminal: a consumed item leaves the catalog
// and can never participate in another trade.
const (
    ItemStatusPending   = "PENDING"
    ItemStatusAvailable = "AVAILABLE"
    ItemStatusSwapped   = "SWAPPED"
    ItemStatusRedeemed  = "REDEEMED"
)

// ItemCategories lists the accepted values of items.category.
var ItemCategories = []string{"Tops", "Bottoms", "Dresses", "Outerwear", "Shoes", "Accessories"}

// ItemSizes lists the accepted values of items.size.
var ItemSizes = []string{"XS", "S", "M", "L", "XL", "XXL", "One Size"}

// ItemConditions lists the accepted values of items.condition.
var ItemConditions = []string{"New with tags", "Like new", "Good", "Fair", "Worn"}

// ValidCategory reports whether s is one of the catalog categories.
func ValidCategory(s string) bool { return contains(ItemCategories, s) }

// ValidSize reports whether s is one of the garment sizes.
func ValidSize(s string) bool { return contains(ItemSizes, s) }

// ValidCondition reports whether s is one of the condition grades.
func ValidCondition(s string) bool { return contains(ItemConditions, s) }

// ItemConsumed reports whether the status marks an item as permanently
// removed from circulation.
func ItemConsumed(status string) bool {
    return status == ItemStatusSwapped || status == ItemStatusRedeemed
}

func contains(set []string, s string) bool {
    for _, v := range set {
        if v == s {
            return true
        }
    }
    return false
}

// Item represents a clothing listing as stored in the `items` table.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – owner of the listing.
//  Title       – short listing title (min length 3).
//  Description – longer free text (min length 10).
//  Category    – one of ItemCategories.
//  Size        – one of ItemSizes.
//  Condition   – one of ItemConditions.
//  Tags        – free‑text tags, stored comma‑joined in a single column.
//  Status      – lifecycle state, see the status constants above.
//  PointPrice  – price in points for outright redemption.
//  IsFeatured  – whether the item is pinned on the home carousel.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Item struct {
    ID          uint64    // items.id
    UserID      uint64    // items.user_id
    Title       string    // items.title
    Description string    // items.description
    Category    string    // items.category
    Size        string    // items.size
    Condition   string    // items.condition
    Tags        []string  // items.tags (comma-joined)
    Status      string    // items.status
    PointPrice  int64     // items.point_price
    IsFeatured  bool      // items.is_featured
    CreatedAt   time.Time // items.created_at
    UpdatedAt   time.Time // items.updated_at
}

// ItemImage links an item to one hosted image URL.  Images are ordered by
// Position; the row with Position 0 is the canonical display image.
//
// Fields:
//  ID       – primary key identifier.
//  ItemID   – item the image belongs to.
//  ImageURL – public URL returned by the external upload widget.
//  Position – zero‑based display order.
type ItemImage struct {
    ID       uint64 // item_images.id
    ItemID   uint64 // item_images.item_id
    ImageURL string // item_images.image_url
    Position int    // item_images.position
}

// MaxItemImages caps the number of images accepted per listing.
const MaxItemImages = 5
