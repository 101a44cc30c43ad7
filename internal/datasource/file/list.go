package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"statbatch/internal/datasource/httpds"
)

// ReadInputs reads an input list: one file path or http(s) URL per line.
// Blank lines and lines starting with '#' are skipped. Relative paths are
// resolved against the directory holding the list, so a list can travel
// with the files it names. Order is preserved.
func ReadInputs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input list: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, resolve(dir, line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("input list %s: %w", path, err)
	}
	return out, nil
}

func resolve(dir, entry string) string {
	if httpds.IsURL(entry) || filepath.IsAbs(entry) {
		return entry
	}
	return filepath.Join(dir, entry)
}
