package parser

import (
	"bufio"
	"strconv"
	"strings"
)

// PackageMap maps Android UIDs to installed package names, built from
// "pm list packages -U"-style output ("package:<name> uid:<n>").
type PackageMap map[int]string

// ParsePackageList scans a package listing and returns the UID map.
// Lines that do not match are ignored; the listing is advisory input
// for display-name resolution, not part of the dump proper.
func ParsePackageList(text string) PackageMap {
	pkgs := make(PackageMap)
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		if name, uid, ok := parsePackageLine(strings.TrimSpace(scanner.Text())); ok {
			pkgs[uid] = name
		}
	}
	return pkgs
}

// parsePackageLine parses one "package:<name> uid:<n>" line.
func parsePackageLine(line string) (name string, uid int, ok bool) {
	rest, found := strings.CutPrefix(line, "package:")
	if !found {
		return "", 0, false
	}
	idx := strings.LastIndex(rest, "uid:")
	if idx < 0 {
		return "", 0, false
	}
	name = strings.TrimSpace(rest[:idx])
	uidStr := strings.TrimSpace(rest[idx+len("uid:"):])
	// Some listings append ",..." after the uid.
	if comma := strings.IndexByte(uidStr, ','); comma >= 0 {
		uidStr = uidStr[:comma]
	}
	uid, err := strconv.Atoi(uidStr)
	if err != nil || name == "" {
		return "", 0, false
	}
	return name, uid, true
}
