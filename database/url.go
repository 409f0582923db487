package database

import (
	"fmt"
	"strings"
)

// ConstructDatabaseURL combines a base URL with a database name and adds
// sslmode=disable unless the URL already specifies an sslmode.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	baseURL = strings.TrimRight(baseURL, "/")

	var databaseURL string
	if base, query, ok := strings.Cut(baseURL, "?"); ok {
		databaseURL = fmt.Sprintf("%s/%s?%s", base, databaseName, query)
	} else {
		databaseURL = fmt.Sprintf("%s/%s", baseURL, databaseName)
	}

	if !strings.Contains(databaseURL, "sslmode=") {
		separator := "&"
		if !strings.Contains(databaseURL, "?") {
			separator = "?"
		}
		databaseURL = databaseURL + separator + "sslmode=disable"
	}

	return databaseURL
}
