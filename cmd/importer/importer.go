// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package importer loads flat settings files into a configdb table.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/configstore/configdb"
	"github.com/cardinalhq/configstore/internal/logctx"
)

// MaxKeyLength matches the width of the key column.
const MaxKeyLength = 256

// Format is the encoding of a settings file.
type Format string

const (
	FormatAuto Format = "auto"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FileReader abstracts file and environment access for tests.
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
	Getenv(key string) string
}

// OSFileReader implements FileReader using OS operations.
type OSFileReader struct{}

func (OSFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

func (OSFileReader) Getenv(key string) string {
	return os.Getenv(key)
}

// Store is the part of configdb.Store the importer writes through.
type Store interface {
	GetKeys(ctx context.Context) ([]string, error)
	CreateBatch() *configdb.Batch
}

// Result summarises one import.
type Result struct {
	Set     int
	Deleted int
}

// Load reads source, which is a file path or "env:VAR", and returns its
// settings flattened to dotted keys.
func Load(source string, format Format, fileReader FileReader) ([]configdb.Entry, error) {
	contents, err := readSource(source, fileReader)
	if err != nil {
		return nil, err
	}
	return Parse(contents, resolveFormat(source, format))
}

const envPrefix = "env:"

// IsEnvSource reports whether source names an environment variable.
func IsEnvSource(source string) bool {
	return strings.HasPrefix(source, envPrefix)
}

func readSource(source string, fileReader FileReader) ([]byte, error) {
	if envVar, ok := strings.CutPrefix(source, envPrefix); ok {
		envContents := fileReader.Getenv(envVar)
		if envContents == "" {
			return nil, fmt.Errorf("environment variable %s is not set", envVar)
		}
		return []byte(envContents), nil
	}

	contents, err := fileReader.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", source, err)
	}
	return contents, nil
}

func resolveFormat(source string, format Format) Format {
	if format != "" && format != FormatAuto {
		return format
	}
	if strings.EqualFold(filepath.Ext(source), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes contents and flattens nested tables into dotted keys. Every
// invalid entry is reported, not just the first.
func Parse(contents []byte, format Format) ([]configdb.Entry, error) {
	doc := map[string]any{}
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(contents, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML settings: %w", err)
		}
	case FormatYAML, FormatAuto, "":
		dec := yaml.NewDecoder(bytes.NewReader(contents))
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML settings: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported settings format %q", format)
	}

	var entries []configdb.Entry
	var errs *multierror.Error
	flatten("", doc, &entries, &errs)
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b configdb.Entry) int {
		return strings.Compare(a.Key, b.Key)
	})
	return entries, nil
}

func flatten(prefix string, node map[string]any, entries *[]configdb.Entry, errs **multierror.Error) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, entries, errs)
			continue
		case []any, []map[string]any:
			*errs = multierror.Append(*errs, fmt.Errorf("%s: lists are not supported", key))
			continue
		case map[any]any:
			*errs = multierror.Append(*errs, fmt.Errorf("%s: table keys must be strings", key))
			continue
		}

		if utf8.RuneCountInString(key) > MaxKeyLength {
			*errs = multierror.Append(*errs, fmt.Errorf("%s: key longer than %d characters", key, MaxKeyLength))
			continue
		}

		entry := configdb.Entry{Key: key}
		if v != nil {
			s := scalarString(v)
			entry.Value = &s
		}
		*entries = append(*entries, entry)
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}

// Apply writes entries in one batch. With replace, keys present in the table
// but absent from entries are deleted in the same batch.
func Apply(ctx context.Context, store Store, entries []configdb.Entry, replace bool) (Result, error) {
	ll := logctx.FromContext(ctx)

	batch := store.CreateBatch()
	wanted := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		wanted[e.Key] = struct{}{}
		if e.Value == nil {
			batch.SetNull(e.Key)
		} else {
			batch.Set(e.Key, *e.Value)
		}
	}

	result := Result{Set: len(wanted)}
	if replace {
		existing, err := store.GetKeys(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("failed to list existing settings: %w", err)
		}
		for _, key := range existing {
			if _, ok := wanted[key]; !ok {
				batch.Delete(key)
				result.Deleted++
			}
		}
	}

	if err := batch.Run(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to apply settings: %w", err)
	}

	ll.Info("Imported settings",
		slog.Int("set", result.Set),
		slog.Int("deleted", result.Deleted),
		slog.Bool("replace", replace))
	return result, nil
}
