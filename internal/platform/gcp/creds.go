package gcp

import (
	"strings"

	"google.golang.org/api/option"
)

const userAgent = "lessonbank-backend"

// clientOptions builds the auth options shared by the Storage and Document AI
// clients. Inline JSON wins over a key file; with neither, application default
// credentials apply.
func (c DocumentConfig) clientOptions() []option.ClientOption {
	opts := []option.ClientOption{option.WithUserAgent(userAgent)}
	switch creds := strings.TrimSpace(c.CredentialsJSON); {
	case creds != "" && strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	case strings.TrimSpace(c.CredentialsFile) != "":
		opts = append(opts, option.WithCredentialsFile(strings.TrimSpace(c.CredentialsFile)))
	}
	if qp := strings.TrimSpace(c.QuotaProject); qp != "" {
		opts = append(opts, option.WithQuotaProject(qp))
	}
	return opts
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}
