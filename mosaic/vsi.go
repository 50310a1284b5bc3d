package mosaic

import "strings"

// VSIPath translates the link of a remote file into a path that GDAL can open remotely:
// s3://bucket/key => /vsis3/bucket/key (direct access, requires temporary s3 credentials)
// http(s)://host/key => /vsicurl/http(s)://host/key (streaming, requires the bearer token)
// Other links (gs://, local files...) are returned unchanged.
func VSIPath(link string) string {
	switch {
	case strings.HasPrefix(link, "s3://"):
		return "/vsis3/" + strings.TrimPrefix(link, "s3://")
	case strings.HasPrefix(link, "https://"), strings.HasPrefix(link, "http://"):
		return "/vsicurl/" + link
	}
	return link
}
