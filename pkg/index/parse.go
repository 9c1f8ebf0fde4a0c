// Copyright © 2018 One Concern

package index

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/oneconcern/darkpan/pkg/model"
)

var headerRe = regexp.MustCompile(`^([\w-]+):(?:\s+(.*))?$`)

// Header of a 02packages.details.txt file
type Header map[string]string

// Parse reads a package index in the 02packages.details.txt format.
//
// The header ends at the first blank line. Each following line holds a package name, its version
// and the path of the distribution providing it.
func Parse(rdr io.Reader, source string) (Header, []Entry, error) {
	header := make(Header)
	var entries []Entry

	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	inHeader := true
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if inHeader {
			if strings.TrimSpace(line) == "" {
				inHeader = false
				continue
			}
			if m := headerRe.FindStringSubmatch(line); m != nil {
				header[m[1]] = strings.TrimSpace(m[2])
				continue
			}
			// no header at all
			inHeader = false
		}

		fields := strings.Fields(line)
		switch len(fields) {
		case 0:
			continue
		case 3:
			entries = append(entries, Entry{
				PackageSpec:  model.PackageSpec{Name: fields[0], Version: fields[1]},
				Distribution: fields[2],
				Source:       source,
			})
		default:
			return nil, nil, fmt.Errorf("malformed index line %d: %q", lineNo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return header, entries, nil
}

// Write renders entries in the 02packages.details.txt format, sorted by package name
func Write(w io.Writer, header Header, entries []Entry) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	bw := bufio.NewWriter(w)
	const lineCount = "Line-Count"
	keys := make([]string, 0, len(header))
	width := len(lineCount)
	for k := range header {
		if k == lineCount {
			continue
		}
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(bw, "%-*s %s\n", width+1, k+":", header[k]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(bw, "%-*s %d\n\n", width+1, lineCount+":", len(sorted)); err != nil {
		return err
	}
	for _, e := range sorted {
		version := e.Version
		if version == "" {
			version = "undef"
		}
		if _, err := fmt.Fprintf(bw, "%-40s %12s  %s\n", e.Name, version, e.Distribution); err != nil {
			return err
		}
	}
	return bw.Flush()
}
