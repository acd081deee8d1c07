//go:build windows

package nodemodules

import "golang.org/x/sys/windows"

// isReparsePoint catches junctions, which ReadDir does not always report as links
func isReparsePoint(path string) bool {
	pathp, err := windows.UTF16PtrFromString(path)

	if err != nil {
		return false
	}

	attrs, err := windows.GetFileAttributes(pathp)

	if err != nil {
		return false
	}

	return attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0
}
