package resolve

import (
	"github.com/gosimple/slug"
)

// базовый токен слага, когда из имени не удалось получить ничего латинского
const fallbackSlugBase = "person"

// Slugify строит URL-слаг: транслитерация кириллицы, строчные латинские
// буквы и цифры, дефисы между словами. Пустой результат допустим,
// вызывающий подставляет базовый токен.
func Slugify(s string) string {
	return slug.Make(s)
}
