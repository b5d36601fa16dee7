// Package storage persists asset content snapshots. A snapshot is the
// deterministic, content-addressed capture of an asset directory's file tree;
// the digest doubles as the payload identity signed into the provenance
// chain. Backends: local filesystem and S3-compatible object storage.
package storage
