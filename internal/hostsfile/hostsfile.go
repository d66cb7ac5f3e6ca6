// Package hostsfile loads static override mappings from /etc/hosts
// style content: one address per line followed by one or more
// hostnames, with '#' comments and blank lines ignored.
package hostsfile

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/dnscope/dnscope/internal/statictable"
)

// Parse reads hosts-style content and returns the mappings it
// declares, in declaration order. Validation of addresses and
// duplicate hostnames happens when the mappings are turned into a
// table, not here.
func Parse(reader io.Reader) ([]statictable.Mapping, error) {
	var mappings []statictable.Mapping
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		mappings = append(mappings, statictable.Mapping{
			Address: fields[0],
			Hosts:   fields[1:],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mappings, nil
}

// Load reads hosts-style mappings from the file at path.
func Load(path string) ([]statictable.Mapping, error) {
	filep, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer filep.Close()
	return Parse(filep)
}
