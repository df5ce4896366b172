// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/axgle/mahonia"
	"golang.org/x/xerrors"
)

const utf8Charset = "UTF-8"

// filenameCharset mirrors glib: the first entry of G_FILENAME_ENCODING,
// where "@locale" means the locale codeset, otherwise UTF-8.
func filenameCharset() string {
	if env := os.Getenv("G_FILENAME_ENCODING"); env != "" {
		charset := strings.TrimSpace(strings.Split(env, ",")[0])
		if charset != "@locale" {
			return charset
		}
		return localeCharset()
	}
	return utf8Charset
}

func localeCharset() string {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		idx := strings.IndexByte(value, '.')
		if idx < 0 {
			break
		}
		charset := value[idx+1:]
		if at := strings.IndexByte(charset, '@'); at >= 0 {
			charset = charset[:at]
		}
		return charset
	}
	return utf8Charset
}

func isUTF8Charset(charset string) bool {
	switch strings.ToUpper(charset) {
	case "UTF-8", "UTF8":
		return true
	}
	return false
}

// filenameToUTF8 turns an on-disk name into displayable text.
func filenameToUTF8(name string) string {
	if utf8.ValidString(name) {
		return name
	}
	charset := filenameCharset()
	if !isUTF8Charset(charset) {
		if dec := mahonia.NewDecoder(charset); dec != nil {
			return dec.ConvertString(name)
		}
	}
	return strings.ToValidUTF8(name, "�")
}

// filenameFromUTF8 is the inverse of filenameToUTF8.
func filenameFromUTF8(name string) string {
	charset := filenameCharset()
	if isUTF8Charset(charset) {
		return name
	}
	enc := mahonia.NewEncoder(charset)
	if enc == nil {
		return name
	}
	return enc.ConvertString(name)
}

// xmlCharsetReader lets encoding/xml read catalogs declared in legacy
// encodings such as ISO-8859-1.
func xmlCharsetReader(label string, input io.Reader) (io.Reader, error) {
	dec := mahonia.NewDecoder(label)
	if dec == nil {
		return nil, xerrors.Errorf("unsupported charset %q", label)
	}
	return dec.NewReader(input), nil
}
