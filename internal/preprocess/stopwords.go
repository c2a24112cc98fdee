package preprocess

var stopWords = toSet(
	// russian
	"и", "в", "во", "не", "что", "он", "на", "я", "с", "со", "как", "а", "то", "все", "она", "так",
	"его", "но", "да", "ты", "к", "у", "же", "вы", "за", "бы", "по", "только", "ее", "её", "мне",
	"было", "вот", "от", "меня", "еще", "ещё", "нет", "о", "из", "ему", "теперь", "когда", "даже",
	"ну", "вдруг", "ли", "если", "уже", "или", "ни", "быть", "был", "него", "до", "вас", "нибудь",
	"опять", "уж", "вам", "ведь", "там", "потом", "себя", "ничего", "ей", "может", "они", "тут",
	"где", "есть", "надо", "ней", "для", "мы", "тебя", "их", "чем", "была", "сам", "чтоб", "без",
	"будто", "чего", "раз", "тоже", "себе", "под", "будет", "ж", "тогда", "кто", "этот", "того",
	"потому", "этого", "какой", "совсем", "ним", "здесь", "этом", "один", "почти", "мой", "тем",
	"чтобы", "нее", "сейчас", "были", "куда", "зачем", "всех", "никогда", "можно", "при",
	"наконец", "два", "об", "другой", "хоть", "после", "над", "больше", "тот", "через", "эти",
	"нас", "про", "всего", "них", "какая", "много", "разве", "три", "эту", "моя", "впрочем",
	"хорошо", "свою", "этой", "перед", "иногда", "лучше", "чуть", "том", "нельзя", "такой", "им",
	"более", "всегда", "конечно", "всю", "между", "это", "также", "который", "которые", "которая",
	// english
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "has", "he", "in", "is", "it",
	"its", "of", "on", "or", "that", "the", "to", "was", "were", "will", "with", "this", "but",
	"they", "have", "had", "what", "when", "where", "who", "which", "their", "if", "each", "do",
	"not", "no", "so", "can",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
