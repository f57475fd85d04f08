package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/AnTengye/civicfund/model"
)

// FileHash is the hex sha256 of an upload, kept for integrity checks
func FileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ExtractGPS reads location metadata from a photo's EXIF block. It returns
// nil when the file carries no usable coordinates.
func ExtractGPS(data []byte) *model.GPSData {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	lat, long, err := x.LatLong()
	if err != nil {
		return nil
	}

	gps := &model.GPSData{
		Latitude:  lat,
		Longitude: long,
		Verified:  true,
	}
	if ts, err := x.DateTime(); err == nil {
		gps.Timestamp = ts.Format("2006-01-02T15:04:05")
	}
	if tag, err := x.Get(exif.Make); err == nil {
		gps.CameraMake, _ = tag.StringVal()
	}
	if tag, err := x.Get(exif.Model); err == nil {
		gps.CameraModel, _ = tag.StringVal()
	}
	return gps
}

var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".heic": "image/heic",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ContentType picks a MIME type from the declared header, the extension and
// finally the leading bytes.
func ContentType(fileName, declared string, head []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ct, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return ct
	}
	return http.DetectContentType(head)
}
