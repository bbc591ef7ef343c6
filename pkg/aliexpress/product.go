package aliexpress

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ProductAPI is the PC product detail page query.
const (
	ProductAPI     = "mtop.aliexpress.pdp.pc.query"
	ProductVersion = "1.0"
)

var (
	allDigits      = regexp.MustCompile(`^\d+$`)
	productIDRules = []*regexp.Regexp{
		regexp.MustCompile(`/item/(\d+)\.html`),
		regexp.MustCompile(`/item/(\d+)`),
		regexp.MustCompile(`item/(\d+)`),
		regexp.MustCompile(`/(\d+)\.html`),
		regexp.MustCompile(`product/(\d+)`),
		regexp.MustCompile(`(\d{13,})`),
	}
)

// ParseProductID accepts a bare numeric id or a product URL.
func ParseProductID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", newError(KindInvalidProductID, "empty product id", nil)
	}
	if allDigits.MatchString(s) {
		return s, nil
	}
	for _, re := range productIDRules {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], nil
		}
	}
	return "", newError(KindInvalidProductID, fmt.Sprintf("no product id in %q", input), nil)
}

// Locale holds the storefront region fields sent with product queries.
type Locale struct {
	Lang     string `json:"lang" yaml:"lang"`
	Currency string `json:"currency" yaml:"currency"`
	Country  string `json:"country" yaml:"country"`
	Province string `json:"province" yaml:"province"`
	City     string `json:"city" yaml:"city"`
	Site     string `json:"site" yaml:"site"`
	Host     string `json:"host" yaml:"host"`
}

// DefaultLocale is the US storefront.
func DefaultLocale() Locale {
	return Locale{
		Lang:     "en_US",
		Currency: "USD",
		Country:  "US",
		Province: "922878890000000000",
		City:     "922878897869000000",
		Site:     "usa",
		Host:     "www.aliexpress.us",
	}
}

// productQuery fields are declared in wire order.
type productQuery struct {
	ProductID  string `json:"productId"`
	Lang       string `json:"_lang"`
	Currency   string `json:"_currency"`
	Country    string `json:"country"`
	Province   string `json:"province"`
	City       string `json:"city"`
	Channel    string `json:"channel"`
	PdpExtF    string `json:"pdp_ext_f"`
	PdpNPI     string `json:"pdpNPI"`
	SourceType string `json:"sourceType"`
	ClientType string `json:"clientType"`
	Ext        string `json:"ext"`
}

// ProductPayload builds the data parameter for a product query. randomToken may be
// empty, in which case a fresh one is generated.
func ProductPayload(productID string, loc Locale, randomToken string) (string, error) {
	if randomToken == "" {
		randomToken = NewRandomToken()
	}

	ext, err := productExt(randomToken, loc)
	if err != nil {
		return "", newError(KindSignature, "encode ext", err)
	}

	b, err := json.Marshal(productQuery{
		ProductID:  productID,
		Lang:       loc.Lang,
		Currency:   loc.Currency,
		Country:    loc.Country,
		Province:   loc.Province,
		City:       loc.City,
		ClientType: "pc",
		Ext:        ext,
	})
	if err != nil {
		return "", newError(KindSignature, "encode product payload", err)
	}
	return string(b), nil
}

// productExt renders the nested ext object with ", " and ": " separators, the
// layout the storefront's own page produces.
func productExt(randomToken string, loc Locale) (string, error) {
	token, err := json.Marshal(randomToken)
	if err != nil {
		return "", err
	}
	site, err := json.Marshal(loc.Site)
	if err != nil {
		return "", err
	}
	host, err := json.Marshal(loc.Host)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"foreverRandomToken": %s, "site": %s, "crawler": false, "x-m-biz-bx-region": "", "signedIn": true, "host": %s}`,
		token, site, host), nil
}

// NewRandomToken returns a 32 character hex token.
func NewRandomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
