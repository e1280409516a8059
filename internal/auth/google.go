package auth

import (
	"net/url"
	"strings"

	"github.com/joseph-ayodele/lumo-backend/internal/common"
)

// User is the profile returned after a Google sign-in.
type User struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// GoogleOAuth builds Supabase authorize URLs and reads the tokens Supabase redirects back with.
type GoogleOAuth struct {
	supabaseURL string
	verifier    *Verifier
}

func NewGoogleOAuth(supabaseURL string, verifier *Verifier) *GoogleOAuth {
	return &GoogleOAuth{supabaseURL: strings.TrimRight(supabaseURL, "/"), verifier: verifier}
}

// AuthorizeURL returns the URL the client opens to start the flow.
func (g *GoogleOAuth) AuthorizeURL(redirectURL string) (string, error) {
	if strings.TrimSpace(redirectURL) == "" {
		return "", common.InvalidInputError("redirect_url is required")
	}
	if g.supabaseURL == "" {
		return "", common.NewAppError("CONFIG_ERROR", "Failed to generate OAuth URL: SUPABASE_URL not set", common.ErrInternal)
	}
	q := url.Values{}
	q.Set("provider", "google")
	q.Set("redirect_to", redirectURL)
	return g.supabaseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

// Callback verifies the access token carried by callbackURL and returns the user.
func (g *GoogleOAuth) Callback(callbackURL string) (*User, error) {
	if strings.TrimSpace(callbackURL) == "" {
		return nil, common.InvalidInputError("callback_url is required")
	}
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, common.InvalidInputErrorf("invalid callback_url: %v", err)
	}
	access := tokenFrom(u.Fragment)
	if access == "" {
		access = tokenFrom(u.RawQuery)
	}
	if access == "" {
		return nil, common.InvalidInputError("No access token found in callback URL")
	}

	id, err := g.verifier.Verify(access)
	if err != nil {
		return nil, err
	}
	first, last := splitName(id.Metadata)
	return &User{ID: id.UserID, Email: id.Email, FirstName: first, LastName: last}, nil
}

func tokenFrom(raw string) string {
	if raw == "" {
		return ""
	}
	v, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	return v.Get("access_token")
}

func splitName(meta map[string]any) (first, last *string) {
	str := func(k string) string {
		s, _ := meta[k].(string)
		return strings.TrimSpace(s)
	}
	full := str("full_name")
	if full == "" {
		full = str("name")
	}
	parts := strings.Fields(full)

	if s := str("given_name"); s != "" {
		first = &s
	} else if len(parts) > 0 {
		first = &parts[0]
	}
	if s := str("family_name"); s != "" {
		last = &s
	} else if len(parts) > 1 {
		rest := strings.Join(parts[1:], " ")
		last = &rest
	}
	return first, last
}
