package registrar

// XML envelope types for the registrar API. Responses share a common outer
// shape: ApiResponse with a Status attribute, an Errors list, and a
// command-specific CommandResponse payload.

type envelope struct {
	Status string `xml:"Status,attr"`
	Errors struct {
		Errors []apiError `xml:"Error"`
	} `xml:"Errors"`
}

func (e *envelope) env() *envelope { return e }

type responseEnvelope interface {
	env() *envelope
}

type apiError struct {
	Number  string `xml:"Number,attr"`
	Message string `xml:",chardata"`
}

// domainItem is one attribute-style <Domain/> element from the list command.
type domainItem struct {
	ID         string `xml:"ID,attr"`
	Name       string `xml:"Name,attr"`
	User       string `xml:"User,attr"`
	Created    string `xml:"Created,attr"`
	Expires    string `xml:"Expires,attr"`
	IsExpired  string `xml:"IsExpired,attr"`
	IsLocked   string `xml:"IsLocked,attr"`
	AutoRenew  string `xml:"AutoRenew,attr"`
	WhoisGuard string `xml:"WhoisGuard,attr"`
	IsPremium  string `xml:"IsPremium,attr"`
	IsOurDNS   string `xml:"IsOurDNS,attr"`
}

type domainListResponse struct {
	envelope
	CommandResponse struct {
		Domains []domainItem `xml:"DomainGetListResult>Domain"`
		Paging  struct {
			TotalItems  int `xml:"TotalItems"`
			CurrentPage int `xml:"CurrentPage"`
			PageSize    int `xml:"PageSize"`
		} `xml:"Paging"`
	} `xml:"CommandResponse"`
}

type reactivateResponse struct {
	envelope
	CommandResponse struct {
		Result struct {
			Domain        string `xml:"Domain,attr"`
			ChargedAmount string `xml:"ChargedAmount,attr"`
			OrderID       string `xml:"OrderID,attr"`
			TransactionID string `xml:"TransactionID,attr"`
		} `xml:"DomainReactivateResult"`
	} `xml:"CommandResponse"`
}

type renewResponse struct {
	envelope
	CommandResponse struct {
		Result struct {
			DomainName    string `xml:"DomainName,attr"`
			ChargedAmount string `xml:"ChargedAmount,attr"`
			OrderID       string `xml:"OrderID,attr"`
			TransactionID string `xml:"TransactionID,attr"`
		} `xml:"DomainRenewResult"`
	} `xml:"CommandResponse"`
}

type infoResponse struct {
	envelope
	CommandResponse struct {
		Result struct {
			DomainName string `xml:"DomainName,attr"`
			Status     string `xml:"Status,attr"`
			IsOwner    string `xml:"IsOwner,attr"`
			Details    struct {
				CreatedDate string `xml:"CreatedDate"`
				ExpiredDate string `xml:"ExpiredDate"`
			} `xml:"DomainDetails"`
			DNSDetails struct {
				Nameservers []string `xml:"Nameserver"`
			} `xml:"DnsDetails"`
		} `xml:"DomainGetInfoResult"`
	} `xml:"CommandResponse"`
}
