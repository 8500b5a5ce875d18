package token

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrExpiredToken   = errors.New("token expired")
)

const (
	DefaultScheme = "beneficios"

	// TTL is how long a scanned code stays valid after it was generated.
	TTL = 5 * time.Minute

	merchantHost   = "merchant"
	issuedAtParam  = "t"
	benefitIDParam = "beneficio"
)

type Claims struct {
	MerchantID string
	BenefitID  string
	IssuedAt   time.Time
}

// Codec builds and parses the reference embedded in merchant QR codes. The reference
// is not signed: it is only shaped and time boxed.
type Codec struct {
	scheme string
	now    func() time.Time
}

func NewCodec(scheme string) *Codec {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return &Codec{scheme: scheme, now: time.Now}
}

// WithClock returns a copy of the codec reading time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	return &Codec{scheme: c.scheme, now: now}
}

func (c *Codec) Scheme() string {
	return c.scheme
}

func (c *Codec) Encode(merchantID, benefitID string) (string, error) {
	if strings.TrimSpace(merchantID) == "" {
		return "", fmt.Errorf("%w: merchant id is required", ErrMalformedToken)
	}

	q := url.Values{}
	q.Set(issuedAtParam, strconv.FormatInt(c.now().UnixMilli(), 10))
	if benefitID != "" {
		q.Set(benefitIDParam, benefitID)
	}

	u := url.URL{
		Scheme:   c.scheme,
		Host:     merchantHost,
		Path:     "/" + merchantID,
		RawPath:  "/" + url.PathEscape(merchantID),
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (c *Codec) Decode(raw string) (*Claims, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if u.Scheme != c.scheme {
		return nil, fmt.Errorf("%w: unexpected scheme %q", ErrMalformedToken, u.Scheme)
	}
	if u.Host != merchantHost {
		return nil, fmt.Errorf("%w: missing merchant segment", ErrMalformedToken)
	}

	// The id is a single escaped segment; a literal "/" means extra segments.
	escaped := strings.TrimPrefix(u.EscapedPath(), "/")
	if escaped == "" || strings.Contains(escaped, "/") {
		return nil, fmt.Errorf("%w: missing merchant id", ErrMalformedToken)
	}
	merchantID, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid merchant id: %v", ErrMalformedToken, err)
	}

	q := u.Query()
	ts := q.Get(issuedAtParam)
	if ts == "" {
		return nil, fmt.Errorf("%w: missing issue time", ErrMalformedToken)
	}
	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid issue time %q", ErrMalformedToken, ts)
	}

	issuedAt := time.UnixMilli(millis)
	age := c.now().Sub(issuedAt)
	if age > TTL {
		return nil, ErrExpiredToken
	}
	if age < -TTL {
		return nil, fmt.Errorf("%w: issue time is in the future", ErrMalformedToken)
	}

	return &Claims{
		MerchantID: merchantID,
		BenefitID:  q.Get(benefitIDParam),
		IssuedAt:   issuedAt,
	}, nil
}
