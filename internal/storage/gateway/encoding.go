package gateway

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeText is permissive about legacy text: columns written before the
// ERP's Unicode migration hold Windows-1252 bytes. Valid UTF-8 passes
// through untouched; anything else is decoded as Windows-1252, which maps
// every byte and so never fails.
func (g *Gateway) decodeText(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if !g.dbCfg.LegacyEncoding || utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
