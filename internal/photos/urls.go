package photos

import "fmt"

const (
	DisplayWidth    = 1920
	DisplayHeight   = 1080
	ThumbnailWidth  = 300
	ThumbnailHeight = 200
)

// SizedURL asks for a variant of baseURL scaled to fit w x h.
func SizedURL(baseURL string, w, h int) string {
	return fmt.Sprintf("%s=w%d-h%d", baseURL, w, h)
}

// DisplayURL is the full-screen variant.
func DisplayURL(baseURL string) string {
	return SizedURL(baseURL, DisplayWidth, DisplayHeight)
}

func ThumbnailURL(baseURL string) string {
	return SizedURL(baseURL, ThumbnailWidth, ThumbnailHeight)
}

// VideoURL is the playable download variant of a video.
func VideoURL(baseURL string) string {
	return baseURL + "=dv"
}
