package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/xid"
)

var safeExt = regexp.MustCompile(`^\.[a-z0-9]+$`)

// ObjectPath places an upload under its owner's directory with a
// time-ordered, collision-resistant name. The file's own extension is kept
// when it is plain alphanumeric; otherwise detectedExt is used, then ".jpg".
func ObjectPath(ownerID, fileName, detectedExt string, now time.Time) string {
	fileExt := strings.ToLower(filepath.Ext(fileName))
	if !safeExt.MatchString(fileExt) {
		fileExt = strings.ToLower(detectedExt)
	}
	if !safeExt.MatchString(fileExt) {
		fileExt = ".jpg"
	}

	return fmt.Sprintf("%s/%d-%s%s", ownerID, now.UnixMilli(), xid.New().String(), fileExt)
}
