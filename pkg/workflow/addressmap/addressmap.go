// Package addressmap parses the runtime address map text file: one record
// per line, comma-separated fields "<location_name>,<host>,<host:port>".
package addressmap

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"golang.org/x/xerrors"
)

// Address is a resolved peer endpoint.
type Address struct {
	Location string
	Host     string
	HostPort string
}

// Map is location name -> Address.
type Map map[string]Address

// Load reads and parses an address map file from path.
func Load(path string) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("opening address map %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads an address map from r.
func Parse(r *os.File) (Map, error) {
	out := make(Map)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			return nil, xerrors.Errorf("address map line %d: expected 3 comma-separated fields, got %d", lineNo, len(fields))
		}
		name := strings.TrimSpace(fields[0])
		out[name] = Address{
			Location: name,
			Host:     strings.TrimSpace(fields[1]),
			HostPort: strings.TrimSpace(fields[2]),
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Errorf("reading address map: %w", err)
	}
	return out, nil
}

// Render serializes m back into the "<name>,<host>,<host:port>" line format,
// in sorted key order, for deterministic output when emitting generated
// project fixtures.
func (m Map) Render() string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		addr := m[name]
		b.WriteString(addr.Location)
		b.WriteByte(',')
		b.WriteString(addr.Host)
		b.WriteByte(',')
		b.WriteString(addr.HostPort)
		b.WriteByte('\n')
	}
	return b.String()
}
