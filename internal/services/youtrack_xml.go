package services

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

type xmlUser struct {
	XMLName  xml.Name `xml:"user"`
	Login    string   `xml:"login,attr"`
	FullName string   `xml:"fullName,attr"`
	Email    string   `xml:"email,attr"`
}

type xmlUserList struct {
	XMLName xml.Name  `xml:"list"`
	Users   []xmlUser `xml:"user"`
}

type xmlField struct {
	Name   string   `xml:"name,attr"`
	Values []string `xml:"value"`
}

type xmlComment struct {
	Author  string `xml:"author,attr"`
	Text    string `xml:"text,attr"`
	Created string `xml:"created,attr"`
}

type xmlIssue struct {
	Fields   []xmlField   `xml:"field"`
	Comments []xmlComment `xml:"comment"`
}

type xmlIssues struct {
	XMLName xml.Name   `xml:"issues"`
	Issues  []xmlIssue `xml:"issue"`
}

type xmlImportItem struct {
	ID       string   `xml:"id,attr"`
	Imported string   `xml:"imported,attr"`
	Errors   []string `xml:"error"`
}

type xmlImportResult struct {
	XMLName xml.Name        `xml:"importResult"`
	Items   []xmlImportItem `xml:"item"`
}

func marshalUsers(users []YouTrackUser) ([]byte, error) {
	list := xmlUserList{Users: make([]xmlUser, 0, len(users))}
	for _, u := range users {
		list.Users = append(list.Users, xmlUser{Login: u.Login, FullName: u.FullName, Email: u.Email})
	}
	return encodeXML(list)
}

// toXML flattens a NewIssue into import fields. Empty values are omitted; custom fields follow in name order.
func (i NewIssue) toXML() xmlIssue {
	var x xmlIssue
	add := func(name, value string) {
		if value != "" {
			x.Fields = append(x.Fields, xmlField{Name: name, Values: []string{value}})
		}
	}

	add("numberInProject", strconv.Itoa(i.NumberInProject))
	add("summary", i.Summary)
	add("description", i.Description)
	add("created", i.Created)
	add("updated", i.Updated)
	add("resolved", i.Resolved)
	add("reporterName", i.ReporterName)
	add("state", i.State)
	add("assignee", i.Assignee)
	add("subsystem", i.Subsystem)
	for _, name := range slices.Sorted(maps.Keys(i.CustomFields)) {
		add(name, i.CustomFields[name])
	}

	for _, c := range i.Comments {
		x.Comments = append(x.Comments, xmlComment(c))
	}
	return x
}

func marshalIssues(issues []NewIssue) ([]byte, error) {
	doc := xmlIssues{Issues: make([]xmlIssue, 0, len(issues))}
	for _, issue := range issues {
		doc.Issues = append(doc.Issues, issue.toXML())
	}
	return encodeXML(doc)
}

func encodeXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode import body: %w", err)
	}
	return buf.Bytes(), nil
}

// parseImportResult decodes an importResult document. An empty body is an empty result.
func parseImportResult(body []byte) (*ImportResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return &ImportResult{}, nil
	}

	var doc xmlImportResult
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnexpectedBody, err)
	}

	result := &ImportResult{Items: make([]ImportItem, 0, len(doc.Items))}
	for _, item := range doc.Items {
		result.Items = append(result.Items, ImportItem{
			ID:       item.ID,
			Imported: item.Imported == "true",
			Errors:   item.Errors,
		})
	}
	return result, nil
}
