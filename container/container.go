// Copyright 2024 The passconv Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package container reads .pkpass archives into memory.
//
// A Container is built once per input and is read-only afterwards. Every
// entry is materialized; entries whose path contains LocaleMarker are also
// grouped into per-locale bundles.
package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/open-policy-agent/opa/v1/util"

	"github.com/walletpass/passconv/passerr"
)

const (
	// ManifestName is the archive entry holding the pass manifest.
	ManifestName = "pass.json"

	// LocaleMarker separates the locale identifier from the resource path.
	LocaleMarker = ".lproj/"

	// StringsName is the localized strings resource inside a locale bundle.
	StringsName = "pass.strings"
)

// ErrTooLarge is wrapped by the container error returned for an archive over
// MaxArchiveBytes.
var ErrTooLarge = errors.New("archive too large")

// Container is an opened pass archive.
type Container struct {
	entries  map[string][]byte
	locales  map[string]map[string][]byte
	manifest map[string]interface{}
}

// Open reads the archive at path.
func Open(path string, opts ...Option) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, passerr.New(passerr.ContainerErr, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, passerr.New(passerr.ContainerErr, err)
	}

	return ReadAt(f, fi.Size(), opts...)
}

// Read buffers r, bounded by the archive size limit, and reads it as an
// archive.
func Read(r io.Reader, opts ...Option) (*Container, error) {
	o := newOptions(opts)

	src := r
	if o.limits.MaxArchiveBytes > 0 {
		src = io.LimitReader(r, o.limits.MaxArchiveBytes+1)
	}

	bs, err := io.ReadAll(src)
	if err != nil {
		return nil, passerr.New(passerr.ContainerErr, err)
	}
	if o.limits.MaxArchiveBytes > 0 && int64(len(bs)) > o.limits.MaxArchiveBytes {
		return nil, passerr.Newf(passerr.ContainerErr, "%w: limit is %d bytes", ErrTooLarge, o.limits.MaxArchiveBytes)
	}

	return readAt(bytes.NewReader(bs), int64(len(bs)), o)
}

// ReadAt reads an archive of the given size from r.
func ReadAt(r io.ReaderAt, size int64, opts ...Option) (*Container, error) {
	return readAt(r, size, newOptions(opts))
}

func readAt(r io.ReaderAt, size int64, o *options) (*Container, error) {
	if o.limits.MaxArchiveBytes > 0 && size > o.limits.MaxArchiveBytes {
		return nil, passerr.Newf(passerr.ContainerErr, "%w: limit is %d bytes", ErrTooLarge, o.limits.MaxArchiveBytes)
	}

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, passerr.New(passerr.ContainerErr, err)
	}

	if o.limits.MaxEntries > 0 && len(zr.File) > o.limits.MaxEntries {
		return nil, passerr.Newf(passerr.ContainerErr, "archive has %d entries, limit is %d", len(zr.File), o.limits.MaxEntries)
	}

	var manifestFile *zip.File
	for _, f := range zr.File {
		if f.Name == ManifestName {
			manifestFile = f
		}
	}
	if manifestFile == nil {
		return nil, passerr.New(passerr.MissingManifestErr, fmt.Errorf("archive has no %s entry", ManifestName))
	}

	raw, err := readEntry(manifestFile, o.limits.MaxEntryBytes)
	if err != nil {
		return nil, err
	}
	manifest, err := decodeManifest(raw)
	if err != nil {
		return nil, err
	}

	c := &Container{
		entries:  make(map[string][]byte, len(zr.File)),
		locales:  map[string]map[string][]byte{},
		manifest: manifest,
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readEntry(f, o.limits.MaxEntryBytes)
		if err != nil {
			return nil, err
		}
		c.entries[f.Name] = data
	}

	for name, data := range c.entries {
		locale, path, ok := splitLocalePath(name)
		if !ok {
			continue
		}
		bundle, ok := c.locales[locale]
		if !ok {
			bundle = map[string][]byte{}
			c.locales[locale] = bundle
		}
		bundle[path] = data
	}

	return c, nil
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return nil, passerr.Entry(f.Name, fmt.Errorf("entry exceeds %d bytes", limit))
	}

	rc, err := f.Open()
	if err != nil {
		return nil, passerr.Entry(f.Name, err)
	}
	defer rc.Close()

	// The declared size is not trusted.
	var src io.Reader = rc
	if limit > 0 {
		src = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, passerr.Entry(f.Name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, passerr.Entry(f.Name, fmt.Errorf("entry exceeds %d bytes", limit))
	}
	return data, nil
}

func decodeManifest(raw []byte) (map[string]interface{}, error) {
	var v interface{}
	if err := util.UnmarshalJSON(raw, &v); err != nil {
		return nil, passerr.New(passerr.InvalidJSONErr, err)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, passerr.Newf(passerr.InvalidJSONErr, "manifest is %T, expected object", v)
	}
	return obj, nil
}

func splitLocalePath(name string) (locale, path string, ok bool) {
	idx := strings.Index(name, LocaleMarker)
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+len(LocaleMarker):], true
}

// Manifest returns the decoded pass.json object. Numbers are json.Number.
func (c *Container) Manifest() map[string]interface{} {
	return c.manifest
}

// Entry returns the content of the named entry.
func (c *Container) Entry(name string) ([]byte, bool) {
	data, ok := c.entries[name]
	return data, ok
}

// Entries returns a copy of the flat entry map. The byte slices are shared
// and must not be modified.
func (c *Container) Entries() map[string][]byte {
	out := make(map[string][]byte, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// EntryNames returns all entry paths in lexical order.
func (c *Container) EntryNames() []string {
	return sortedKeys(c.entries)
}

// Locales returns the locale identifiers that have a bundle, in lexical order.
func (c *Container) Locales() []string {
	names := make([]string, 0, len(c.locales))
	for k := range c.locales {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Bundle returns a copy of the resources of one locale keyed by their path
// inside the bundle.
func (c *Container) Bundle(locale string) (map[string][]byte, bool) {
	bundle, ok := c.locales[locale]
	if !ok {
		return nil, false
	}
	out := make(map[string][]byte, len(bundle))
	for k, v := range bundle {
		out[k] = v
	}
	return out, true
}

// Strings decodes the pass.strings resource of a locale. It returns a nil
// map and no error when the locale has no such resource.
func (c *Container) Strings(locale string) (map[string]string, error) {
	bundle, ok := c.locales[locale]
	if !ok {
		return nil, nil
	}
	data, ok := bundle[StringsName]
	if !ok {
		return nil, nil
	}
	m, err := ParseStrings(data)
	if err != nil {
		e := passerr.New(passerr.InvalidStringsErr, err)
		e.Entry = locale + LocaleMarker + StringsName
		return nil, e
	}
	return m, nil
}

func sortedKeys(m map[string][]byte) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
