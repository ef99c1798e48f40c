package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/tokens":                    "/v1/tokens",
		"/v1/tokens/42":                 "/v1/tokens/:id",
		"/v1/tokens/42/accept":          "/v1/tokens/:id/accept",
		"/v1/tokens?batch_id=7":         "/v1/tokens",
		"/v1/batch-members/9":           "/v1/batch-members/:id",
		"/v1/batch-members/9/claim":     "/v1/batch-members/:id/claim",
		"/v1/batch-members/9/unrelated": "/v1/batch-members/9/unrelated",
		"/v1/leaderboard":               "/v1/leaderboard",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
