// SPDX-License-Identifier: MIT

package stream

import "net/url"

func escapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}
