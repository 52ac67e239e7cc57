package flickr

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"flickrharvest/pkg/region"
)

const (
	// DefaultBaseURL is the REST endpoint
	DefaultBaseURL = "https://api.flickr.com/services/rest/"
	// DefaultAssetBaseURL serves photo files
	DefaultAssetBaseURL = "https://live.staticflickr.com"

	MethodSearch    = "flickr.photos.search"
	MethodEcho      = "flickr.test.echo"
	MethodGetPerson = "flickr.people.getInfo"

	// DateLayout is the format of taken dates in requests and responses
	DateLayout = "2006-01-02 15:04:05"

	// Extras requested on every search
	Extras = "geo,date_taken,tags,url_b,owner_name"

	// MaxPageSize is the largest per_page the API honours
	MaxPageSize = 500

	// codeInvalidKey is returned with stat=fail for an unknown API key
	codeInvalidKey = 100
)

// searchParams builds the query for one page of r, without credential
func searchParams(r region.RegionClock, page, pageSize, accuracy int) url.Values {
	params := url.Values{}
	params.Set("method", MethodSearch)
	params.Set("bbox", r.BBox())
	params.Set("accuracy", strconv.Itoa(accuracy))
	params.Set("min_taken_date", r.Start.UTC().Format(DateLayout))
	params.Set("max_taken_date", r.End.UTC().Format(DateLayout))
	params.Set("extras", Extras)
	params.Set("media", "photos")
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(pageSize))
	return params
}

// AssetURL builds the static URL for p at the given size suffix. An empty
// suffix selects the default 500px rendition.
func AssetURL(p Photo, suffix string) string {
	return assetURL(DefaultAssetBaseURL, p, suffix)
}

func assetURL(base string, p Photo, suffix string) string {
	name := p.ID + "_" + p.Secret
	if suffix != "" {
		name += "_" + suffix
	}
	return fmt.Sprintf("%s/%s/%s.jpg", strings.TrimRight(base, "/"), p.Server, name)
}
