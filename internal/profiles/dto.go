package profiles

type profileRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=80"`
	IsAdmin  bool   `json:"is_admin"`
	IsActive *bool  `json:"is_active"`
}

type grantRequest struct {
	ModuleID  int64 `json:"module_id" validate:"required,gt=0"`
	CanView   bool  `json:"can_view"`
	CanEdit   bool  `json:"can_edit"`
	CanDelete bool  `json:"can_delete"`
}

type replaceGrantsRequest struct {
	Grants []grantRequest `json:"grants" validate:"dive"`
}

type profileDetailResponse struct {
	Profile Profile       `json:"profile"`
	Grants  []ModuleGrant `json:"grants"`
}
