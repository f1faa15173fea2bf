package scanning

import (
	"image"

	"github.com/disintegration/imaging"
)

// minOCRHeight is the height below which images are upscaled before OCR
const minOCRHeight = 900

// preprocess prepares a photo for Tesseract: grayscale, more contrast, a light
// sharpen and an upscale for small captures. Card photos are usually taken
// at an angle under uneven light, so contrast matters more than resolution.
func preprocess(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 20)
	gray = imaging.Sharpen(gray, 0.7)
	if gray.Bounds().Dy() < minOCRHeight {
		gray = imaging.Resize(gray, 0, minOCRHeight+300, imaging.Lanczos)
	}
	return gray
}
