// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads provider credentials from a directory of
// plain-text files. Each file is one secret: the filename is the key
// name and the trimmed file contents are the value.
//
// Supported key files: google-books-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openshelf/openshelf/pkg/types"
)

// GoogleBooksKey is the filename holding the Google Books API key.
const GoogleBooksKey = "google-books-api-key"

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error; Load returns an empty
// map. Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			out[name] = value
		}
	}

	return out, nil
}

// Apply copies known secrets into cfg. Keys already present in cfg
// (for example from environment variables) win over file contents.
func Apply(loaded map[string]string, cfg *types.AppConfig) {
	key, ok := loaded[GoogleBooksKey]
	if !ok {
		return
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]types.ProviderConfig)
	}
	pc := cfg.Providers[string(types.SourceGoogleBooks)]
	if pc.APIKey == "" {
		pc.APIKey = key
	}
	cfg.Providers[string(types.SourceGoogleBooks)] = pc
}
