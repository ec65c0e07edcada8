package nlp

// Списки ниже — конфигурационные данные классификатора, а не логика:
// развёртывания могут подменять их целиком через SetOrgMarkers.

// Сокращения организационно-правовых форм и прочие маркеры юрлиц.
// Сравнение — точное по токену, без учёта регистра. Римские цифры тоже
// считаются маркером организации (встречаются в названиях НИИ и КБ).
var defaultOrgAbbreviations = []string{
	"ооо", "оао", "зао", "пао", "ао", "нао", "ип", "гуп", "муп", "фгуп",
	"фгбу", "фгбоу", "фгаоу", "фгбун", "гбу", "гку", "ано", "нко",
	"нии", "кб", "окб", "цкб", "нпо", "нпп", "нтц", "внии", "цнии", "скб",
	"тоо", "одо", "оп", "пк", "спк", "кфх", "тсж", "жск",
	"ltd", "llc", "inc", "gmbh", "corp", "co", "ag", "sa", "srl", "bv",
	"i", "ii", "iii", "iv", "v", "vi", "vii", "viii", "ix", "x",
}

// Ключевые слова, указывающие на организацию при вхождении как подстроки
// (проверяются по основе слова, чтобы ловить словоформы).
var defaultOrgKeywords = []string{
	"институт", "университет", "академия", "компания", "корпорация",
	"объединение", "предприятие", "завод", "фабрика", "комбинат",
	"лаборатория", "центр", "бюро", "общество", "товарищество",
	"министерство", "департамент", "управление", "агентство", "фонд",
	"холдинг", "концерн", "трест", "артель", "кооператив", "фирма",
	"учреждение", "организация", "ассоциация", "союз", "партнерство",
	"institute", "university", "academy", "company", "corporation",
	"laboratory", "foundation", "technologies",
}
