// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package blob abstracts voucher media storage behind a small S3-like
// interface with filesystem, S3, and in-memory drivers. Keys map directly
// to the legacy voucher filename convention under a fixed subdirectory.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/herpatlas/herpatlas/internal/config"
)

// Driver identifies a concrete storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local filesystem (default, dev)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // in-memory (tests)
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is the media storage contract consumed by the voucher pipeline.
// Put is create-only: voucher keys embed allocator-issued ids and are
// never rewritten.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	// URL returns a client-resolvable URL for the blob.
	URL(ctx context.Context, key string) (string, error)
	Driver() Driver
}

// ErrExists is returned by Put when the key is already stored.
var ErrExists = errors.New("blob: key already exists")

// ErrNotExist is returned by reads of missing keys.
var ErrNotExist = errors.New("blob: key does not exist")

// Open constructs the Store selected by the media configuration.
func Open(ctx context.Context, cfg *config.MediaConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.Root, cfg.BaseURL)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.Endpoint != "",
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
