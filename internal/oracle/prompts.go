package oracle

import (
	"fmt"
	"strings"
)

const ocrPrompt = "이 이미지는 한국어 교회 신문 페이지입니다. 이미지에서 모든 텍스트를 정확하게 추출해주세요. 한글 인코딩을 올바르게 처리해주세요."

const jsonReplySuffix = "\n\nJSON 형식으로 응답해주세요."

// Categories lists the editorial categories suggested to the model. Replies outside it are kept as-is.
var Categories = []string{
	"행사", "간증", "선교", "말씀", "컬럼", "샘물", "절기", "수련회", "양육프로그램",
	"성찬식", "세례식", "장례식", "찬양", "교회학교", "청년부", "부흥회", "특별새벽기도회", "큐티",
}

const structurePromptTemplate = `다음은 교회 신문 페이지 %d의 OCR 추출 텍스트입니다. 다음 형식의 JSON으로 응답해주세요:

{
  "title": "기사 제목",
  "content": "전체 기사 내용",
  "summary": "기사 내용 요약",
  "articleType": "기사 유형 (%s 등)",
  "author": "글쓴이 또는 기자 이름",
  "events": [
    {
      "type": "이벤트 유형",
      "date": "YYYY-MM-DD 형식의 날짜 (있는 경우)",
      "title": "이벤트 제목",
      "description": "이벤트 설명",
      "location": "장소 (있는 경우)",
      "participants": ["참여자 이름"]
    }
  ]
}

OCR 텍스트:
%s`

func structurePrompt(text string, pageNumber int) string {
	return fmt.Sprintf(structurePromptTemplate, pageNumber, strings.Join(Categories, ", "), text)
}
