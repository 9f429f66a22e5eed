package main

import "strings"

// defaultAnnPath derives the companion .ann path from a .mpack path by
// swapping the extension, since build always writes the pair together.
func defaultAnnPath(packPath string) string {
	if ext := ".mpack"; strings.HasSuffix(packPath, ext) {
		return strings.TrimSuffix(packPath, ext) + ".ann"
	}
	return packPath + ".ann"
}
