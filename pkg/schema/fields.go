package schema

// Canonical position fields, in mapping priority order.
const (
	FieldOrg       = "org"
	FieldUnit      = "unit"
	FieldName      = "name"
	FieldCode      = "code"
	FieldQuota     = "quota"
	FieldEducation = "education"
	FieldDegree    = "degree"
	FieldMajorPG   = "major_pg"
	FieldMajorUG   = "major_ug"
	FieldTarget    = "target"
	FieldNotes     = "notes"
	FieldIntro     = "intro"
	FieldCity      = "city"
	FieldDistrict  = "district"
)

type field struct {
	name    string
	aliases []string
}

// positionFields is the alias table. 招录机关 appears twice: when a sheet carries both
// 机构名称 and 招录机关, the first is the authority and the second the employing unit.
var positionFields = []field{
	{FieldOrg, []string{"机构名称", "招录机关"}},
	{FieldUnit, []string{"用人单位", "招录机关"}},
	{FieldName, []string{"招录职位", "职位名称"}},
	{FieldCode, []string{"职位代码"}},
	{FieldQuota, []string{"招录数量", "招录人数"}},
	{FieldEducation, []string{"学历"}},
	{FieldDegree, []string{"学位"}},
	{FieldMajorPG, []string{"研究生专业"}},
	{FieldMajorUG, []string{"本科专业"}},
	{FieldTarget, []string{"招录对象"}},
	{FieldNotes, []string{"备注"}},
	{FieldIntro, []string{"职位简介"}},
	{FieldCity, []string{"城市", "地市", "工作地点", "机构层级"}},
	{FieldDistrict, []string{"区县"}},
}

// Daily report header markers.
const (
	dailyCodeMarker  = "职位代码"
	dailyTitlePrefix = "湖北省"
	dailyTitleMarker = "统计表"
	passedMarkerA    = "审核"
	passedMarkerB    = "人数"
)

var applicantMarkers = []string{"报考人数", "报名人数"}

// Mapping records which source column feeds each canonical field.
type Mapping map[string]int

// Column returns the column index mapped to field, or -1.
func (m Mapping) Column(field string) int {
	if i, ok := m[field]; ok {
		return i
	}
	return -1
}
