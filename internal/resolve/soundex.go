// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package resolve

import "strings"

// soundexCodes maps letters to American Soundex digit classes. Vowels and
// H/W/Y carry no code; H and W additionally do not separate equal codes.
var soundexCodes = map[byte]byte{
	'B': '1', 'F': '1', 'P': '1', 'V': '1',
	'C': '2', 'G': '2', 'J': '2', 'K': '2', 'Q': '2', 'S': '2', 'X': '2', 'Z': '2',
	'D': '3', 'T': '3',
	'L': '4',
	'M': '5', 'N': '5',
	'R': '6',
}

// soundex computes the 4-character American Soundex code of a single word.
// Non-letter input yields "".
func soundex(word string) string {
	word = strings.ToUpper(word)

	var first byte
	i := 0
	for ; i < len(word); i++ {
		c := word[i]
		if c >= 'A' && c <= 'Z' {
			first = c
			break
		}
	}
	if first == 0 {
		return ""
	}

	code := []byte{first}
	prev := soundexCodes[first]
	for i++; i < len(word) && len(code) < 4; i++ {
		c := word[i]
		if c < 'A' || c > 'Z' {
			prev = 0
			continue
		}
		d, ok := soundexCodes[c]
		if !ok {
			// H and W are transparent: they do not reset the previous
			// code, so "Ashcraft" encodes the same as "Ashcroft".
			if c != 'H' && c != 'W' {
				prev = 0
			}
			continue
		}
		if d != prev {
			code = append(code, d)
		}
		prev = d
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

// phoneticKey encodes a multi-word name as the concatenation of its
// per-word soundex codes, so "Grene Frog" still matches "Green Frog".
func phoneticKey(name string) string {
	fields := strings.Fields(name)
	codes := make([]string, 0, len(fields))
	for _, f := range fields {
		if c := soundex(f); c != "" {
			codes = append(codes, c)
		}
	}
	return strings.Join(codes, " ")
}
