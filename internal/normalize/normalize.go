// Package normalize provides utilities for normalizing user-entered text.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// TagName returns the comparison key used to decide whether two tag names
// collide. It is never shown to users.
//
// Rules:
//  1. Unicode NFKC so full-width and composed forms compare equal
//  2. Case folding ("Sunset" == "SUNSET", "Straße" == "STRASSE")
//  3. Trim and collapse internal whitespace
//
// Examples:
//
//	"  Sunset   Photos " → "sunset photos"
//	"ＣＡＴＳ"            → "cats"
func TagName(name string) string {
	s := norm.NFKC.String(name)
	s = folder.String(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// DisplayName trims and collapses whitespace while keeping case, for storing
// the name the user typed.
func DisplayName(name string) string {
	s := norm.NFC.String(name)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
