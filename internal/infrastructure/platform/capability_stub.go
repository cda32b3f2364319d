//go:build !darwin

package platform

// DetectCapabilities 非 macOS 平台没有任何原生能力
func DetectCapabilities() Capabilities {
	return Capabilities{}
}
