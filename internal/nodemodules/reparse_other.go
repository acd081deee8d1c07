//go:build !windows

package nodemodules

func isReparsePoint(string) bool {
	return false
}
