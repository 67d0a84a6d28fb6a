package seeder

import (
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

// TagNames 固定的标签集合，顺序即插入顺序
var TagNames = []string{
	"科幻", "教育", "兩性", "科技", "言情", "家庭", "職場",
	"心理", "文學", "學習", "個人成長", "寵物", "八卦", "時事",
	"經濟", "商業", "電影", "遊戲", "美食", "旅遊", "科普",
}

var surnames = []string{
	"陳", "林", "黃", "張", "李", "王", "吳", "劉", "蔡", "楊",
	"許", "鄭", "謝", "郭", "洪", "曾", "邱", "廖", "賴", "周",
}

var givenChars = []string{
	"怡", "君", "雅", "婷", "宗", "翰", "家", "豪", "志", "明",
	"淑", "芬", "俊", "傑", "美", "玲", "建", "宏", "冠", "宇",
	"佳", "穎", "承", "恩", "欣", "妤", "柏", "辰", "思", "彤",
}

// zhTWName 生成一个台湾常见风格的姓名：单姓加一到两个字
func zhTWName(f *gofakeit.Faker) string {
	var b strings.Builder
	b.WriteString(f.RandomString(surnames))
	n := f.Number(1, 2)
	for i := 0; i < n; i++ {
		b.WriteString(f.RandomString(givenChars))
	}
	return b.String()
}
