package flickr

import (
	"strconv"
	"strings"
	"time"
)

// FlexInt accepts a JSON number or a numeric string. The REST API returns
// some counters as strings depending on the method.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		v = int64(fv)
	}
	*f = FlexInt(v)
	return nil
}

// FlexFloat accepts a JSON number or a numeric string
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// envelope carries the status fields every response shares
type envelope struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SearchResponse is the body of flickr.photos.search
type SearchResponse struct {
	envelope
	Photos PhotoPage `json:"photos"`
}

// PhotoPage is the paginated photo block of a search response
type PhotoPage struct {
	Page    FlexInt `json:"page"`
	Pages   FlexInt `json:"pages"`
	PerPage FlexInt `json:"perpage"`
	Total   FlexInt `json:"total"`
	Photo   []Photo `json:"photo"`
}

// Photo is one search result with the requested extras
type Photo struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Secret    string    `json:"secret"`
	Server    string    `json:"server"`
	Farm      FlexInt   `json:"farm"`
	Title     string    `json:"title"`
	Latitude  FlexFloat `json:"latitude"`
	Longitude FlexFloat `json:"longitude"`
	Accuracy  FlexInt   `json:"accuracy"`
	PlaceID   string    `json:"place_id"`
	DateTaken string    `json:"datetaken"`
	Tags      string    `json:"tags"`
	OwnerName string    `json:"ownername"`
	URLB      string    `json:"url_b,omitempty"`
}

// TakenAt parses DateTaken. The API reports it without a zone.
func (p Photo) TakenAt() (time.Time, error) {
	return time.ParseInLocation(DateLayout, p.DateTaken, time.UTC)
}

// Page is one decoded search page
type Page struct {
	Number int
	Pages  int
	Total  int
	Photos []Photo
}

type content struct {
	Content string `json:"_content"`
}

// personResponse is the body of flickr.people.getInfo
type personResponse struct {
	envelope
	Person struct {
		NSID     string   `json:"nsid"`
		Username content  `json:"username"`
		RealName content  `json:"realname"`
		Location *content `json:"location,omitempty"`
	} `json:"person"`
}

// OwnerProfile is the enrichment metadata for one owner. Hometown is empty
// when the profile does not publish it.
type OwnerProfile struct {
	ID       string
	Username string
	Hometown string
}
