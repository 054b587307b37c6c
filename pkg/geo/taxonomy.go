package geo

import "strings"

// Sentinel classifications.
const (
	Province  = "省直"
	Capital   = "武汉市"
	Municipal = "市直"
	Other     = "其他"
	Unknown   = "未知"
)

// City is one prefecture-level unit and its county-level subdivisions. Names must match the
// map renderer byte for byte.
type City struct {
	Name      string
	Districts []string
}

var taxonomy = []City{
	{"武汉市", []string{"江岸区", "江汉区", "硚口区", "汉阳区", "武昌区", "青山区", "洪山区", "东西湖区", "汉南区", "蔡甸区", "江夏区", "黄陂区", "新洲区"}},
	{"黄石市", []string{"黄石港区", "西塞山区", "下陆区", "铁山区", "阳新县", "大冶市"}},
	{"十堰市", []string{"茅箭区", "张湾区", "郧阳区", "郧西县", "竹山县", "竹溪县", "房县", "丹江口市"}},
	{"宜昌市", []string{"西陵区", "伍家岗区", "点军区", "猇亭区", "夷陵区", "远安县", "兴山县", "秭归县", "长阳土家族自治县", "五峰土家族自治县", "宜都市", "当阳市", "枝江市"}},
	{"襄阳市", []string{"襄城区", "樊城区", "襄州区", "南漳县", "谷城县", "保康县", "老河口市", "枣阳市", "宜城市"}},
	{"鄂州市", []string{"梁子湖区", "华容区", "鄂城区"}},
	{"荆门市", []string{"东宝区", "掇刀区", "沙洋县", "钟祥市", "京山市"}},
	{"孝感市", []string{"孝南区", "孝昌县", "大悟县", "云梦县", "应城市", "安陆市", "汉川市"}},
	{"荆州市", []string{"沙市区", "荆州区", "公安县", "江陵县", "石首市", "洪湖市", "松滋市", "监利市"}},
	{"黄冈市", []string{"黄州区", "团风县", "红安县", "罗田县", "英山县", "浠水县", "蕲春县", "黄梅县", "麻城市", "武穴市"}},
	{"咸宁市", []string{"咸安区", "嘉鱼县", "通城县", "崇阳县", "通山县", "赤壁市"}},
	{"随州市", []string{"曾都区", "随县", "广水市"}},
	{"恩施土家族苗族自治州", []string{"恩施市", "利川市", "建始县", "巴东县", "宣恩县", "咸丰县", "来凤县", "鹤峰县"}},
	{"仙桃市", nil},
	{"潜江市", nil},
	{"天门市", nil},
	{"神农架林区", nil},
}

var (
	cityIndex     = map[string]int{}
	districtIndex = map[string]map[string]bool{}
)

func init() {
	for i, c := range taxonomy {
		cityIndex[c.Name] = i
		set := make(map[string]bool, len(c.Districts))
		for _, d := range c.Districts {
			set[d] = true
		}
		districtIndex[c.Name] = set
	}
}

// Taxonomy returns a copy of the reference table in its canonical order.
func Taxonomy() []City {
	out := make([]City, len(taxonomy))
	for i, c := range taxonomy {
		out[i] = City{Name: c.Name, Districts: append([]string(nil), c.Districts...)}
	}
	return out
}

// Cities lists every city name in canonical order.
func Cities() []string {
	out := make([]string, len(taxonomy))
	for i, c := range taxonomy {
		out[i] = c.Name
	}
	return out
}

// Districts lists the subdivisions of city, or nil for unknown and undivided cities.
func Districts(city string) []string {
	i, ok := cityIndex[city]
	if !ok {
		return nil
	}
	return append([]string(nil), taxonomy[i].Districts...)
}

func IsCity(name string) bool {
	_, ok := cityIndex[name]
	return ok
}

func IsDistrict(city, district string) bool {
	return districtIndex[city][district]
}

var citySuffixes = []string{"土家族苗族自治州", "林区", "市", "州"}

// ShortName strips the administrative suffix from a city name: 鄂州市 -> 鄂州,
// 恩施土家族苗族自治州 -> 恩施, 神农架林区 -> 神农架.
func ShortName(city string) string {
	for _, s := range citySuffixes {
		if strings.HasSuffix(city, s) && len(city) > len(s) {
			return strings.TrimSuffix(city, s)
		}
	}
	return city
}

var districtSuffixes = []string{"土家族自治县", "林区", "区", "县", "市"}

func shortDistrict(d string) string {
	for _, s := range districtSuffixes {
		if strings.HasSuffix(d, s) && len(d) > len(s) {
			return strings.TrimSuffix(d, s)
		}
	}
	return d
}

// MapName resolves a short or full city name to the name used by the map renderer.
// Unknown names are returned unchanged with ok=false.
func MapName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if IsCity(name) {
		return name, true
	}
	for _, c := range taxonomy {
		short := ShortName(c.Name)
		if name == short || name == short+"州" || name == short+"市" {
			return c.Name, true
		}
	}
	return name, false
}
