// Package checkout builds hosted checkout links for the payment provider.
package checkout

import (
	"errors"
	"net/url"
	"strings"
)

const (
	liveBaseURL = "https://checkout.dodopayments.com/buy"
	testBaseURL = "https://test.checkout.dodopayments.com/buy"

	// DefaultProductID is the product sold when none is configured.
	DefaultProductID = "pdt_eCqU7zSrzmDHYstrWiYwu"
)

// Builder produces checkout URLs for a single product.
type Builder struct {
	LiveMode  bool
	ProductID string
	// ReturnURL is where the provider sends the buyer afterwards. Empty means
	// <origin>/success.
	ReturnURL string
}

// URL returns the checkout link for email. origin is the scheme and host the
// request arrived on and is used only when no ReturnURL is configured.
func (b Builder) URL(email, origin string) (string, error) {
	product := b.ProductID
	if product == "" {
		product = DefaultProductID
	}

	base := testBaseURL
	if b.LiveMode {
		base = liveBaseURL
	}

	ret, err := b.returnURL(email, origin)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("quantity", "1")
	q.Set("redirect_url", ret)
	if email != "" {
		q.Set("email", email)
	}

	return base + "/" + url.PathEscape(product) + "?" + q.Encode(), nil
}

func (b Builder) returnURL(email, origin string) (string, error) {
	raw := b.ReturnURL
	if raw == "" {
		if origin == "" {
			return "", errors.New("checkout: origin is required without a return url")
		}
		raw = strings.TrimSuffix(origin, "/") + "/success"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.New("checkout: invalid return url")
	}
	if email != "" {
		q := u.Query()
		q.Set("email", email)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
