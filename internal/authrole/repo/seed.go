package repo

import "github.com/ovaphlow/pitchfork/service-apd/internal/authrole/entity"

var defaultActivities = []entity.Activity{
	{ID: 1, Name: entity.ActivityViewUsers},
	{ID: 2, Name: entity.ActivityAddUsers},
	{ID: 3, Name: entity.ActivityEditUsers},
	{ID: 4, Name: entity.ActivityDeleteUsers},
	{ID: 5, Name: entity.ActivityViewRoles},
	{ID: 6, Name: entity.ActivityViewDocument},
	{ID: 7, Name: entity.ActivityEditDocument},
}

var defaultRoles = []entity.Role{
	{
		ID:   1,
		Name: "admin",
		Activities: []string{
			entity.ActivityViewUsers, entity.ActivityAddUsers, entity.ActivityEditUsers,
			entity.ActivityDeleteUsers, entity.ActivityViewRoles,
			entity.ActivityViewDocument, entity.ActivityEditDocument,
		},
	},
	{
		ID:         2,
		Name:       "state-coordinator",
		Activities: []string{entity.ActivityViewDocument, entity.ActivityEditDocument, entity.ActivityViewRoles},
	},
	{
		ID:         3,
		Name:       "state-staff",
		Activities: []string{entity.ActivityViewDocument, entity.ActivityEditDocument},
	},
}

var defaultStates = []entity.State{
	{ID: "al", Name: "Alabama"}, {ID: "ak", Name: "Alaska"}, {ID: "as", Name: "American Samoa"},
	{ID: "az", Name: "Arizona"}, {ID: "ar", Name: "Arkansas"}, {ID: "ca", Name: "California"},
	{ID: "co", Name: "Colorado"}, {ID: "ct", Name: "Connecticut"}, {ID: "de", Name: "Delaware"},
	{ID: "dc", Name: "District of Columbia"}, {ID: "fl", Name: "Florida"}, {ID: "ga", Name: "Georgia"},
	{ID: "gu", Name: "Guam"}, {ID: "hi", Name: "Hawaii"}, {ID: "id", Name: "Idaho"},
	{ID: "il", Name: "Illinois"}, {ID: "in", Name: "Indiana"}, {ID: "ia", Name: "Iowa"},
	{ID: "ks", Name: "Kansas"}, {ID: "ky", Name: "Kentucky"}, {ID: "la", Name: "Louisiana"},
	{ID: "me", Name: "Maine"}, {ID: "md", Name: "Maryland"}, {ID: "ma", Name: "Massachusetts"},
	{ID: "mi", Name: "Michigan"}, {ID: "mn", Name: "Minnesota"}, {ID: "ms", Name: "Mississippi"},
	{ID: "mo", Name: "Missouri"}, {ID: "mt", Name: "Montana"}, {ID: "ne", Name: "Nebraska"},
	{ID: "nv", Name: "Nevada"}, {ID: "nh", Name: "New Hampshire"}, {ID: "nj", Name: "New Jersey"},
	{ID: "nm", Name: "New Mexico"}, {ID: "ny", Name: "New York"}, {ID: "nc", Name: "North Carolina"},
	{ID: "nd", Name: "North Dakota"}, {ID: "mp", Name: "Northern Mariana Islands"}, {ID: "oh", Name: "Ohio"},
	{ID: "ok", Name: "Oklahoma"}, {ID: "or", Name: "Oregon"}, {ID: "pa", Name: "Pennsylvania"},
	{ID: "pr", Name: "Puerto Rico"}, {ID: "ri", Name: "Rhode Island"}, {ID: "sc", Name: "South Carolina"},
	{ID: "sd", Name: "South Dakota"}, {ID: "tn", Name: "Tennessee"}, {ID: "tx", Name: "Texas"},
	{ID: "ut", Name: "Utah"}, {ID: "vt", Name: "Vermont"}, {ID: "vi", Name: "U.S. Virgin Islands"},
	{ID: "va", Name: "Virginia"}, {ID: "wa", Name: "Washington"}, {ID: "wv", Name: "West Virginia"},
	{ID: "wi", Name: "Wisconsin"}, {ID: "wy", Name: "Wyoming"},
}
