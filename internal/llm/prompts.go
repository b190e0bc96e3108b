package llm

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"metals-dashboard/internal/news"
)

const maxSummaryArticles = 10

const (
	systemPromptZh = "你是一位资深有色金属行业分析师，拥有丰富的矿业、冶炼、贸易政策和市场分析经验。" +
		"请用专业、简练的语言回答问题。输出使用 Markdown 格式。"
	systemPromptEn = "You are a senior non-ferrous metals industry analyst with deep expertise in mining, " +
		"smelting, trade policies, and market analysis. Respond professionally and concisely. " +
		"Use Markdown formatting."
)

func systemPrompt(lang string) string {
	if lang == "zh" {
		return systemPromptZh
	}
	return systemPromptEn
}

type SummarizeRequest struct {
	Articles []news.Article `json:"articles"`
	Metal    string         `json:"metal"`
	Lang     string         `json:"lang"`
}

type AnalyzeRequest struct {
	Metal        string `json:"metal"`
	MetalZh      string `json:"metal_zh"`
	PriceInfo    string `json:"price_info"`
	NewsSnippets string `json:"news_snippets"`
	Lang         string `json:"lang"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Metal    string        `json:"metal"`
	MetalZh  string        `json:"metal_zh"`
	Context  string        `json:"context"`
	Lang     string        `json:"lang"`
}

// SummarizeMessages uses at most the first ten articles.
func SummarizeMessages(req SummarizeRequest) []*schema.Message {
	metal := req.Metal
	if metal == "" {
		metal = "unknown metal"
	}
	articles := req.Articles
	if len(articles) > maxSummaryArticles {
		articles = articles[:maxSummaryArticles]
	}
	parts := make([]string, 0, len(articles))
	for _, a := range articles {
		parts = append(parts, fmt.Sprintf("**%s**\n%s", a.Title, a.Body))
	}
	text := strings.Join(parts, "\n\n")

	var user string
	if req.Lang == "zh" {
		user = fmt.Sprintf("以下是关于 **%s** 的最新资讯，请提取核心要点并生成一份专业摘要，"+
			"涵盖价格走势、供需动态、政策变化和行业影响。\n\n%s", metal, text)
	} else {
		user = fmt.Sprintf("Below are the latest articles about **%s**. Extract key points and generate "+
			"a professional summary covering price trends, supply-demand dynamics, policy changes, "+
			"and industry impact.\n\n%s", metal, text)
	}
	return []*schema.Message{
		schema.SystemMessage(systemPrompt(req.Lang)),
		schema.UserMessage(user),
	}
}

func AnalyzeMessages(req AnalyzeRequest) []*schema.Message {
	metal := req.Metal
	if metal == "" {
		metal = "unknown metal"
	}
	metalZh := req.MetalZh
	if metalZh == "" {
		metalZh = metal
	}
	priceInfo := req.PriceInfo
	if priceInfo == "" {
		priceInfo = "N/A"
	}

	var b strings.Builder
	if req.Lang == "zh" {
		fmt.Fprintf(&b, "请对 **%s（%s）** 进行全面的专业市场分析。\n\n", metalZh, metal)
		fmt.Fprintf(&b, "## 当前价格信息\n%s\n\n", priceInfo)
		fmt.Fprintf(&b, "## 近期资讯摘要\n%s\n\n", req.NewsSnippets)
		b.WriteString("请从以下角度展开分析：\n")
		b.WriteString("1. **市场概况与价格走势**\n")
		b.WriteString("2. **供给侧分析**（矿山产能、冶炼产能、库存变化）\n")
		b.WriteString("3. **需求侧分析**（下游行业、新兴应用、替代风险）\n")
		b.WriteString("4. **政策与贸易环境**（关税、出口管制、环保法规）\n")
		b.WriteString("5. **风险因素与关注要点**\n")
		b.WriteString("6. **短期展望**\n")
	} else {
		fmt.Fprintf(&b, "Provide a comprehensive professional market analysis for **%s**.\n\n", metal)
		fmt.Fprintf(&b, "## Current Price Info\n%s\n\n", priceInfo)
		fmt.Fprintf(&b, "## Recent News Summary\n%s\n\n", req.NewsSnippets)
		b.WriteString("Analyze from the following perspectives:\n")
		b.WriteString("1. **Market Overview & Price Trend**\n")
		b.WriteString("2. **Supply Side** (mine capacity, smelter capacity, inventory)\n")
		b.WriteString("3. **Demand Side** (downstream industries, emerging applications, substitution risk)\n")
		b.WriteString("4. **Policy & Trade Environment** (tariffs, export controls, environmental regulations)\n")
		b.WriteString("5. **Risk Factors & Key Watchpoints**\n")
		b.WriteString("6. **Short-Term Outlook**\n")
	}
	return []*schema.Message{
		schema.SystemMessage(systemPrompt(req.Lang)),
		schema.UserMessage(b.String()),
	}
}

// ChatMessages prepends a system prompt naming the metal on screen and any
// context the dashboard sent, then replays the caller's history.
func ChatMessages(req ChatRequest) []*schema.Message {
	sys := systemPrompt(req.Lang)
	if req.Metal != "" {
		if req.Lang == "zh" {
			metalZh := req.MetalZh
			if metalZh == "" {
				metalZh = req.Metal
			}
			sys += fmt.Sprintf("\n\n当前用户正在查看 **%s（%s）** 的信息面板。", metalZh, req.Metal)
		} else {
			sys += fmt.Sprintf("\n\nThe user is currently viewing the info panel for **%s**.", req.Metal)
		}
	}
	if req.Context != "" {
		sys += "\n\nContext data:\n" + req.Context
	}

	out := make([]*schema.Message, 0, len(req.Messages)+1)
	out = append(out, schema.SystemMessage(sys))
	for _, m := range req.Messages {
		out = append(out, &schema.Message{Role: schema.RoleType(m.Role), Content: m.Content})
	}
	return out
}
