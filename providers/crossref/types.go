package crossref

// worksResponse is the top-level envelope of a CrossRef /works/{doi} response.
type worksResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// searchResponse is the envelope of a CrossRef /works?query= response.
type searchResponse struct {
	Status  string `json:"status"`
	Message struct {
		Items []Work `json:"items"`
	} `json:"message"`
}

// Work represents a single CrossRef work record. Every field except the DOI
// may be absent; decoding must tolerate missing values.
type Work struct {
	DOI             string       `json:"DOI"`
	Title           []string     `json:"title"`
	Author          []WorkAuthor `json:"author"`
	ContainerTitle  []string     `json:"container-title"`
	Publisher       string       `json:"publisher"`
	Volume          string       `json:"volume"`
	Issue           string       `json:"issue"`
	Page            string       `json:"page"`
	Abstract        string       `json:"abstract"`
	URL             string       `json:"URL"`
	Published       *WorkDate    `json:"published"`
	PublishedOnline *WorkDate    `json:"published-online"`
	Issued          *WorkDate    `json:"issued"`
	PublishedPrint  *WorkDate    `json:"published-print"`
	Created         *WorkDate    `json:"created"`
}

// WorkAuthor is a single entry of a work's author list.
type WorkAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	ORCID  string `json:"ORCID"`
}

// WorkDate is a CrossRef date field. A date-parts entry may carry just the
// year, year+month, or year+month+day; only the first component is reliable.
type WorkDate struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component of the date, or 0 if none is present.
func (d *WorkDate) Year() int {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}
