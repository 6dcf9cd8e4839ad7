/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics_writer.go
Description: Writes run snapshots into a history directory with timestamped, versioned,
kind-specific names so successive runs against one target can be compared.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotName builds 2024-06-11_01-30-00_scan_<id>_v1.0.0.json
func SnapshotName(at time.Time, kind, id, version string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s_%s_v%s.json", at.Format("2006-01-02_15-04-05"), kind, id, version)
}

// WriteSnapshot writes v as indented JSON to <dir>/<kind>/<SnapshotName>
func WriteSnapshot(dir, kind, id, version string, v interface{}) (string, error) {
	kindDir := filepath.Join(dir, kind)
	if err := os.MkdirAll(kindDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := filepath.Join(kindDir, SnapshotName(time.Now(), kind, id, version))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}
