//go:build !govips || !cgo

package editor

func Startup() error {
	return nil
}

func Shutdown() {}

func DefaultEncoder() Encoder {
	return imagingEncoder{}
}

func Backend() string {
	return "imaging"
}
