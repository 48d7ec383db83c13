package shopify

// Patch is the typed payload for a catalog mutation. It is a sealed union:
// each optimization writes exactly one field shape, and UpdateProduct
// switches over the concrete types exhaustively.
type Patch interface {
	isPatch()
}

// TitlePatch replaces the product title.
type TitlePatch struct {
	Title string
}

// DescriptionPatch replaces the product body HTML.
type DescriptionPatch struct {
	BodyHTML string
}

// PricePatch sets a new price on one variant. Price is a 2-decimal string
// such as "18.99".
type PricePatch struct {
	VariantID int64
	Price     string
}

// TagsPatch replaces the comma-joined tag string.
type TagsPatch struct {
	Tags string
}

func (TitlePatch) isPatch()       {}
func (DescriptionPatch) isPatch() {}
func (PricePatch) isPatch()       {}
func (TagsPatch) isPatch()        {}
