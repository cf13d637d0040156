package statsim

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"
)

// A Scene is one picture to replay through the simulated ISPs, along
// with the sensor gain it was taken at.
type Scene struct {
	Filename   string
	Image      image.Image
	ISO        int64
	SensorGain float64 // ISO/100; 1.0 if the file has no EXIF
}

// LoadScenes loads every image named, recursing into directories.
// Files that aren't images are skipped.
func LoadScenes(args ...string) ([]Scene, error) {
	scenes := []Scene{}
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {

		case err != nil:
			return nil, fmt.Errorf("load %s: %v", arg, err)

		case item.IsDir():
			contents, err := ioutil.ReadDir(arg)
			if err != nil {
				return nil, fmt.Errorf("readdir %s: %v", arg, err)
			}
			names := []string{}
			for _, content := range contents {
				names = append(names, filepath.Join(arg, content.Name()))
			}
			sort.Strings(names)
			sub, err := LoadScenes(names...)
			if err != nil {
				return nil, err
			}
			scenes = append(scenes, sub...)

		default:
			if !isImage(arg) {
				continue
			}
			sc, err := LoadScene(arg)
			if err != nil {
				return nil, err
			}
			scenes = append(scenes, sc)
		}
	}

	return scenes, nil
}

func isImage(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff", ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func LoadScene(filename string) (Scene, error) {
	sc := Scene{Filename: filename, SensorGain: 1.0}

	// First, the EXIF metadata, if there is any
	if iso, err := loadISO(filename); err == nil && iso > 0 {
		sc.ISO = iso
		sc.SensorGain = float64(iso) / 100.0
		if sc.SensorGain < 1.0 {
			sc.SensorGain = 1.0
		}
	}

	// Re-open the file, now for the image data
	reader, err := os.Open(filename)
	if err != nil {
		return sc, fmt.Errorf("open+r img '%s': %v", filename, err)
	}
	defer reader.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		sc.Image, err = tiff.Decode(reader)
	case ".png":
		sc.Image, err = png.Decode(reader)
	case ".jpg", ".jpeg":
		sc.Image, err = jpeg.Decode(reader)
	default:
		err = fmt.Errorf("unknown image type")
	}
	if err != nil {
		return sc, fmt.Errorf("decode '%s': %v", filename, err)
	}

	return sc, nil
}

func loadISO(filename string) (int64, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return 0, fmt.Errorf("open+r exif '%s': %v", filename, err)
	}
	defer reader.Close()

	ex, err := exif.Decode(reader)
	if err != nil {
		return 0, fmt.Errorf("exif parsing '%s': %v", filename, err)
	}

	tag, err := ex.Get(exif.ISOSpeedRatings)
	if err != nil {
		return 0, fmt.Errorf("exif ISO '%s': %v", filename, err)
	}
	val, err := tag.Int64(0)
	if err != nil {
		return 0, fmt.Errorf("exif ISO '%s': %v", filename, err)
	}
	return val, nil
}
