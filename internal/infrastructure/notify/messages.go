package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// Message keys
const (
	KeyCartLoadFailed       = "cart.load_failed"
	KeyCartAdded            = "cart.added"
	KeyCartAddFailed        = "cart.add_failed"
	KeyCartRemoved          = "cart.removed"
	KeyCartRemoveFailed     = "cart.remove_failed"
	KeyCartUpdated          = "cart.updated"
	KeyCartUpdateFailed     = "cart.update_failed"
	KeyCartCleared          = "cart.cleared"
	KeyCartClearFailed      = "cart.clear_failed"
	KeyFavoritesLoadFailed  = "favorites.load_failed"
	KeyFavoriteAdded        = "favorites.added"
	KeyFavoriteAddFailed    = "favorites.add_failed"
	KeyFavoriteRemoved      = "favorites.removed"
	KeyFavoriteRemoveFailed = "favorites.remove_failed"
	KeyLoginSucceeded       = "auth.login_succeeded"
	KeyLoginFailed          = "auth.login_failed"
	KeyRegisterSucceeded    = "auth.register_succeeded"
	KeyRegisterFailed       = "auth.register_failed"
	KeyLogoutSucceeded      = "auth.logout_succeeded"
	KeyMigrationPartial     = "migration.partial"
)

// Supported languages. Arabic is the storefront default.
var (
	Arabic    = language.Arabic
	English   = language.English
	Supported = []language.Tag{Arabic, English}
)

var translations = map[string][2]string{ // key -> {ar, en}
	KeyCartLoadFailed:       {"تعذر تحميل السلة", "Could not load your cart"},
	KeyCartAdded:            {"تمت إضافة %s إلى السلة", "%s added to cart"},
	KeyCartAddFailed:        {"تعذرت إضافة المنتج إلى السلة", "Could not add the product to your cart"},
	KeyCartRemoved:          {"تمت إزالة المنتج من السلة", "Product removed from cart"},
	KeyCartRemoveFailed:     {"تعذرت إزالة المنتج من السلة", "Could not remove the product from your cart"},
	KeyCartUpdated:          {"تم تحديث الكمية إلى %d", "Quantity updated to %d"},
	KeyCartUpdateFailed:     {"تعذر تحديث الكمية", "Could not update the quantity"},
	KeyCartCleared:          {"تم إفراغ السلة", "Cart cleared"},
	KeyCartClearFailed:      {"تعذر إفراغ السلة", "Could not clear your cart"},
	KeyFavoritesLoadFailed:  {"تعذر تحميل المفضلة", "Could not load your favorites"},
	KeyFavoriteAdded:        {"تمت إضافة %s إلى المفضلة", "%s added to favorites"},
	KeyFavoriteAddFailed:    {"تعذرت إضافة المنتج إلى المفضلة", "Could not add the product to favorites"},
	KeyFavoriteRemoved:      {"تمت إزالة المنتج من المفضلة", "Product removed from favorites"},
	KeyFavoriteRemoveFailed: {"تعذرت إزالة المنتج من المفضلة", "Could not remove the product from favorites"},
	KeyLoginSucceeded:       {"مرحباً بعودتك، %s", "Welcome back, %s"},
	KeyLoginFailed:          {"فشل تسجيل الدخول", "Login failed"},
	KeyRegisterSucceeded:    {"تم إنشاء حسابك بنجاح", "Your account has been created"},
	KeyRegisterFailed:       {"فشل إنشاء الحساب", "Registration failed"},
	KeyLogoutSucceeded:      {"تم تسجيل الخروج", "You have been logged out"},
	KeyMigrationPartial:     {"تعذر نقل %d من العناصر المحفوظة إلى حسابك", "%d saved items could not be moved to your account"},
}

// NewCatalog builds the message catalog for all supported languages
func NewCatalog() (catalog.Catalog, error) {
	b := catalog.NewBuilder(catalog.Fallback(Arabic))
	for key, texts := range translations {
		if err := b.SetString(Arabic, key, texts[0]); err != nil {
			return nil, err
		}
		if err := b.SetString(English, key, texts[1]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

var matcher = language.NewMatcher(Supported)

// MatchLanguage picks the supported language for an Accept-Language header
// value or a bare tag such as "en". Unknown input selects Arabic.
func MatchLanguage(accept string) language.Tag {
	if accept == "" {
		return Arabic
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return Arabic
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Arabic
	}
	return Supported[idx]
}
